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

package servo

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// TickFrequencyHz is the frequency of the timer counter (1 tick = 1us).
	TickFrequencyHz = 1000000
)

// SupportedFrequencies lists all PWM frequencies (in Hz) that divide
// the tick frequency into an exact number of ticks.
var SupportedFrequencies = []uint32{50, 100, 200, 400}

// IsSupportedFrequency returns true if the given frequency (in Hz)
// is one of SupportedFrequencies.
func IsSupportedFrequency(hz uint32) bool {
	for _, f := range SupportedFrequencies {
		if f == hz {
			return true
		}
	}
	return false
}

// Parameters holds the configuration of a single servo output.
// A pulse width bound of 0 means that bound is disabled.
type Parameters struct {
	// Timer that generates the PWM signal.
	Timer TimerDevice
	// ClockFrequencyHz is the clock that feeds the timer prescaler.
	ClockFrequencyHz uint32
	// ChannelNumber of the timer channel (1..4).
	ChannelNumber uint8
	// PWMFrequencyHz is the frequency of the output signal.
	PWMFrequencyHz uint32
	// MinPulseWidthUs is the minimum pulse width in microseconds (0 = disabled).
	MinPulseWidthUs uint32
	// MaxPulseWidthUs is the maximum pulse width in microseconds (0 = disabled).
	MaxPulseWidthUs uint32
}

// String returns a human readable representation of the parameters.
func (p Parameters) String() string {
	return fmt.Sprintf("clock=%dHz channel=%d frequency=%dHz min=%dus max=%dus",
		p.ClockFrequencyHz, p.ChannelNumber, p.PWMFrequencyHz, p.MinPulseWidthUs, p.MaxPulseWidthUs)
}

// DerivedConfiguration holds the register values and timing metadata
// derived from a clock and PWM frequency.
type DerivedConfiguration struct {
	// PrescaleDivider makes every timer tick last 1us.
	PrescaleDivider uint32
	// AutoReloadValue is the last counter value of a period.
	// A period lasts AutoReloadValue+1 ticks.
	AutoReloadValue uint32
	// PeriodUs is the length of a PWM period in microseconds.
	PeriodUs float64
	// ResolutionUs is PeriodUs / AutoReloadValue.
	ResolutionUs float64
}

// Derive computes the register values for the given clock and PWM frequency.
func Derive(clockFrequencyHz, pwmFrequencyHz uint32) (DerivedConfiguration, error) {
	if !IsSupportedFrequency(pwmFrequencyHz) {
		return DerivedConfiguration{}, errors.Wrapf(ErrInvalidFrequency, "frequency %dHz is not one of %v", pwmFrequencyHz, SupportedFrequencies)
	}
	if clockFrequencyHz < TickFrequencyHz {
		return DerivedConfiguration{}, errors.Wrapf(ErrInvalidClock, "clock frequency %dHz cannot produce a 1us tick", clockFrequencyHz)
	}
	arr := TickFrequencyHz/pwmFrequencyHz - 1
	periodUs := float64(TickFrequencyHz) / float64(pwmFrequencyHz)
	return DerivedConfiguration{
		PrescaleDivider: clockFrequencyHz/TickFrequencyHz - 1,
		AutoReloadValue: arr,
		PeriodUs:        periodUs,
		ResolutionUs:    periodUs / float64(arr),
	}, nil
}

// SetFrequency sets the PWM frequency of the given parameters and
// programs prescaler and auto-reload registers of its timer.
// Registers are shared by all channels of the timer.
// Calling this while the output is running causes a short glitch,
// since the registers are not updated on a timer update event.
func SetFrequency(p *Parameters, hz uint32) (DerivedConfiguration, error) {
	derived, err := deriveFor(*p, hz)
	if err != nil {
		return DerivedConfiguration{}, err
	}
	p.Timer.SetPrescaleDivider(derived.PrescaleDivider)
	p.Timer.SetAutoReload(derived.AutoReloadValue)
	p.PWMFrequencyHz = hz
	return derived, nil
}

// deriveFor computes the register values for the given parameters at the
// given frequency, without touching the timer.
func deriveFor(p Parameters, hz uint32) (DerivedConfiguration, error) {
	if !IsSupportedFrequency(hz) {
		return DerivedConfiguration{}, errors.Wrapf(ErrInvalidFrequency, "frequency %dHz is not one of %v", hz, SupportedFrequencies)
	}
	if p.Timer == nil {
		return DerivedConfiguration{}, errors.Wrap(ErrMissingDevice, "cannot program registers")
	}
	return Derive(p.ClockFrequencyHz, hz)
}
