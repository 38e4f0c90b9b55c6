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
	"strconv"

	"github.com/binkynet/ServoTimer/pkg/servo"
)

// meteredTimer wraps a timer, counting all register & output operations.
type meteredTimer struct {
	Timer
	name string
}

// NewMeteredTimer wraps the given timer with prometheus metrics,
// labeled with the given timer name.
func NewMeteredTimer(name string, t Timer) Timer {
	return &meteredTimer{
		Timer: t,
		name:  name,
	}
}

// StartChannelOutput enables PWM output on the given channel.
func (t *meteredTimer) StartChannelOutput(ch servo.ChannelAddress) error {
	return t.countOutput(ch, "start", t.Timer.StartChannelOutput)
}

// StopChannelOutput disables PWM output on the given channel.
func (t *meteredTimer) StopChannelOutput(ch servo.ChannelAddress) error {
	return t.countOutput(ch, "stop", t.Timer.StopChannelOutput)
}

func (t *meteredTimer) countOutput(ch servo.ChannelAddress, op string, f func(servo.ChannelAddress) error) error {
	channel := strconv.Itoa(int(ch.Number()))
	outputCounters.WithLabelValues(t.name, channel, op).Inc()
	if err := f(ch); err != nil {
		outputErrorCounters.WithLabelValues(t.name, channel, op).Inc()
		return err
	}
	if op == "start" {
		outputEnabledGauges.WithLabelValues(t.name, channel).Set(1)
	} else {
		outputEnabledGauges.WithLabelValues(t.name, channel).Set(0)
	}
	return nil
}

// SetPrescaleDivider programs the prescaler register.
func (t *meteredTimer) SetPrescaleDivider(value uint32) {
	registerWriteCounters.WithLabelValues(t.name, "psc").Inc()
	t.Timer.SetPrescaleDivider(value)
}

// GetPrescaleDivider returns the prescaler register.
func (t *meteredTimer) GetPrescaleDivider() uint32 {
	registerReadCounters.WithLabelValues(t.name, "psc").Inc()
	return t.Timer.GetPrescaleDivider()
}

// SetAutoReload programs the auto-reload register.
func (t *meteredTimer) SetAutoReload(value uint32) {
	registerWriteCounters.WithLabelValues(t.name, "arr").Inc()
	t.Timer.SetAutoReload(value)
}

// GetAutoReload returns the auto-reload register.
func (t *meteredTimer) GetAutoReload() uint32 {
	registerReadCounters.WithLabelValues(t.name, "arr").Inc()
	return t.Timer.GetAutoReload()
}

// SetCompare programs the compare register of the given channel.
func (t *meteredTimer) SetCompare(ch servo.ChannelAddress, value uint32) {
	registerWriteCounters.WithLabelValues(t.name, compareRegisterName(ch)).Inc()
	t.Timer.SetCompare(ch, value)
}

// GetCompare returns the compare register of the given channel.
func (t *meteredTimer) GetCompare(ch servo.ChannelAddress) uint32 {
	registerReadCounters.WithLabelValues(t.name, compareRegisterName(ch)).Inc()
	return t.Timer.GetCompare(ch)
}

// compareRegisterName returns ccr<N> for the given channel.
func compareRegisterName(ch servo.ChannelAddress) string {
	return "ccr" + strconv.Itoa(int(ch.Number()))
}
