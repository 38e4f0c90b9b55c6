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
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoTimer/pkg/servo"
)

// mqttTimer is a timer device that forwards all register writes to
// a remote timer through an MQTT broker.
// It keeps a shadow copy of all registers, the compare registers
// are updated from state messages sent by the remote timer.
//
// Topics (relative to the topic prefix):
//
//	psc/command, arr/command         prescaler & auto-reload
//	ch<N>/ccr/command, ch<N>/ccr/state  compare register of channel N
//	ch<N>/enable/command             "ON" / "OFF"
type mqttTimer struct {
	log               zerolog.Logger
	mutex             sync.Mutex
	topicPrefix       string
	mqttClientID      string
	mqttBrokerAddress string
	client            mqttapi.Client

	psc     uint32
	arr     uint32
	compare [servo.ChannelCount]uint32
	enabled [servo.ChannelCount]bool
}

const (
	mqttPublishTimeout = time.Millisecond * 200
)

// newMQTTTimer creates an MQTT timer device with given topic prefix.
func newMQTTTimer(log zerolog.Logger, topicPrefix, clientID, mqttBrokerAddress string) (Timer, error) {
	if mqttBrokerAddress == "" {
		return nil, errors.New("mqtt broker address is required")
	}
	topicPrefix = strings.TrimSuffix(topicPrefix, "/") + "/"
	return &mqttTimer{
		log:               log,
		topicPrefix:       topicPrefix,
		mqttClientID:      clientID,
		mqttBrokerAddress: mqttBrokerAddress,
		psc:               resetPrescaleDivider,
		arr:               resetAutoReload,
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *mqttTimer) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Prepare MQTT client options
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + d.mqttBrokerAddress).
		SetClientID(d.mqttClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})

	// Connect client
	d.client = mqttapi.NewClient(opts)
	if token := d.client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "failed to connect to mqtt")
	}
	if token := d.client.Subscribe(d.topicPrefix+"#", 0, d.onMessage); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "failed to subscribe to '%s'", d.topicPrefix+"#")
	}
	return nil
}

// Close brings the device back to a safe state.
func (d *mqttTimer) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.client != nil {
		for i := range d.enabled {
			if d.enabled[i] {
				d.publish(d.channelTopic(i, "enable"), formatOnOff(false))
				d.enabled[i] = false
			}
		}
		d.client.Disconnect(250)
		d.client = nil
	}
	return nil
}

// Receive messages
func (d *mqttTimer) onMessage(client mqttapi.Client, msg mqttapi.Message) {
	topic := strings.TrimPrefix(msg.Topic(), d.topicPrefix)
	var n int
	if _, err := fmt.Sscanf(topic, "ch%d/ccr/state", &n); err != nil || n < 1 || n > servo.ChannelCount {
		// Not a valid message
		return
	}
	value, err := strconv.ParseUint(strings.TrimSpace(string(msg.Payload())), 10, 32)
	if err != nil {
		d.log.Debug().Err(err).Str("topic", msg.Topic()).Msg("invalid compare state")
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.compare[n-1] = uint32(value)
}

// StartChannelOutput enables PWM output on the given channel.
func (d *mqttTimer) StartChannelOutput(ch servo.ChannelAddress) error {
	return d.setEnabled(ch, true)
}

// StopChannelOutput disables PWM output on the given channel.
func (d *mqttTimer) StopChannelOutput(ch servo.ChannelAddress) error {
	return d.setEnabled(ch, false)
}

func (d *mqttTimer) setEnabled(ch servo.ChannelAddress, enabled bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	idx, ok := channelIndex(ch)
	if !ok {
		return errors.Errorf("invalid channel address %#x", uint32(ch))
	}
	if d.client == nil {
		return errors.New("mqtt timer is not configured")
	}
	topic := d.channelTopic(idx, "enable")
	if !d.publish(topic, formatOnOff(enabled)) {
		return errors.Errorf("failed to deliver '%s' in time", topic)
	}
	d.enabled[idx] = enabled
	return nil
}

// SetPrescaleDivider programs the prescaler register.
func (d *mqttTimer) SetPrescaleDivider(value uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.psc = value
	d.publish(d.topicPrefix+"psc/command", strconv.FormatUint(uint64(value), 10))
}

// GetPrescaleDivider returns the prescaler register.
func (d *mqttTimer) GetPrescaleDivider() uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.psc
}

// SetAutoReload programs the auto-reload register.
func (d *mqttTimer) SetAutoReload(value uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.arr = value
	d.publish(d.topicPrefix+"arr/command", strconv.FormatUint(uint64(value), 10))
}

// GetAutoReload returns the auto-reload register.
func (d *mqttTimer) GetAutoReload() uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.arr
}

// SetCompare programs the compare register of the given channel.
func (d *mqttTimer) SetCompare(ch servo.ChannelAddress, value uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	idx, ok := channelIndex(ch)
	if !ok {
		return
	}
	d.compare[idx] = value
	d.publish(d.channelTopic(idx, "ccr"), strconv.FormatUint(uint64(value), 10))
}

// GetCompare returns the compare register of the given channel.
func (d *mqttTimer) GetCompare(ch servo.ChannelAddress) uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if idx, ok := channelIndex(ch); ok {
		return d.compare[idx]
	}
	return 0
}

// channelTopic returns the command topic of a register of the channel with given index.
func (d *mqttTimer) channelTopic(idx int, register string) string {
	return fmt.Sprintf("%sch%d/%s/command", d.topicPrefix, idx+1, register)
}

// publish the given payload, returning true when it was delivered in time.
// Caller must hold the mutex.
func (d *mqttTimer) publish(topic, payload string) bool {
	if d.client == nil {
		d.log.Warn().Str("topic", topic).Msg("mqtt timer is not configured")
		return false
	}
	token := d.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) || token.Error() != nil {
		d.log.Error().Err(token.Error()).
			Str("topic", topic).
			Str("payload", payload).
			Msg("failed to deliver MQTT command in time")
		return false
	}
	return true
}

// format a bool as string
func formatOnOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
