// Copyright 2024 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package devices

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// TimerType identifies a timer backend.
type TimerType string

const (
	// TimerTypeVirtual is an in-memory timer.
	TimerTypeVirtual TimerType = "virtual"
	// TimerTypeMQTT is a remote timer controlled through an MQTT broker.
	TimerTypeMQTT TimerType = "mqtt"
)

// TimerConfig specifies which timer device to create.
type TimerConfig struct {
	// Type of timer backend
	Type TimerType
	// Name of the timer, used in metrics & logs
	Name string
	// Address (host:port) of the MQTT broker (mqtt only)
	MQTTBrokerAddress string
	// Topic prefix of the remote timer (mqtt only)
	MQTTTopicPrefix string
	// Client ID used to connect to the MQTT broker (mqtt only)
	MQTTClientID string
}

// NewTimer creates the timer device described by the given config.
// The returned timer is instrumented with metrics.
func NewTimer(config TimerConfig, log zerolog.Logger) (Timer, error) {
	name := config.Name
	if name == "" {
		name = string(config.Type)
	}
	log = log.With().
		Str("component", "timer").
		Str("timer", name).
		Logger()
	var t Timer
	switch config.Type {
	case TimerTypeVirtual:
		t = NewVirtualTimer()
	case TimerTypeMQTT:
		clientID := config.MQTTClientID
		if clientID == "" {
			clientID = "servotimer-" + name
		}
		var err error
		t, err = newMQTTTimer(log, config.MQTTTopicPrefix, clientID, config.MQTTBrokerAddress)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown timer type '%s' (virtual|mqtt)", config.Type)
	}
	log.Debug().Str("type", string(config.Type)).Msg("Created timer")
	return NewMeteredTimer(name, t), nil
}
