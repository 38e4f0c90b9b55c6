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

package service

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/binkynet/ServoTimer/pkg/servo"
)

// Status of the servo output.
type Status struct {
	State            servo.State `json:"state"`
	ClockFrequencyHz uint32      `json:"clock_frequency_hz"`
	Channel          uint8       `json:"channel"`
	PWMFrequencyHz   uint32      `json:"pwm_frequency_hz"`
	MinPulseWidthUs  uint32      `json:"min_pulse_width_us,omitempty"`
	MaxPulseWidthUs  uint32      `json:"max_pulse_width_us,omitempty"`
	PrescaleDivider  uint32      `json:"prescale_divider"`
	AutoReloadValue  uint32      `json:"auto_reload_value"`
	PeriodUs         float64     `json:"period_us"`
	ResolutionUs     float64     `json:"resolution_us"`
	PulseWidthUs     uint32      `json:"pulse_width_us"`
	DutyCycle        float64     `json:"duty_cycle"`
	Uptime           string      `json:"uptime"`
}

// Summary returns a single line human readable description of the status.
func (s Status) Summary() string {
	return fmt.Sprintf("%s, channel %d, clock %s, %s, pulse %dus (%.2f%%)",
		s.State, s.Channel,
		humanize.SI(float64(s.ClockFrequencyHz), "Hz"),
		humanize.SI(float64(s.PWMFrequencyHz), "Hz"),
		s.PulseWidthUs, s.DutyCycle)
}
