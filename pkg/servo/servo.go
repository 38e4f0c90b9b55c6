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
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Servo generates a PWM signal with a microsecond resolution pulse width
// on a single channel of a hardware timer.
//
// A Servo is not safe for concurrent use.
// It assumes exclusive ownership of its timer channel, and of the shared
// prescaler and auto-reload registers of the timer while running.
type Servo struct {
	log     zerolog.Logger
	params  Parameters
	derived DerivedConfiguration
	state   State
	channel ChannelAddress
	// zeroPulse is set when the last programmed pulse width was 0.
	// Compare value 0 is used for both 0us and 1us pulses.
	zeroPulse bool
}

// New creates an uninitialized servo.
func New(log zerolog.Logger) *Servo {
	return &Servo{
		log:   log,
		state: StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (s *Servo) State() State {
	return s.state
}

// Parameters returns the parameters of the last successful initialize.
func (s *Servo) Parameters() Parameters {
	return s.params
}

// DerivedConfiguration returns the register values of the last
// programmed frequency.
func (s *Servo) DerivedConfiguration() DerivedConfiguration {
	return s.derived
}

// ChannelAddress returns the resolved channel address.
func (s *Servo) ChannelAddress() ChannelAddress {
	return s.channel
}

// Initialize programs the timer registers for the configured frequency,
// validates the parameters and resolves the channel.
// All parameters are checked before the timer is touched, so on failure
// the state and registers are unchanged.
// Initializing a running servo stops it first.
func (s *Servo) Initialize(p Parameters) (State, error) {
	derived, err := deriveFor(p, p.PWMFrequencyHz)
	if err != nil {
		return s.state, err
	}
	if err := validate(p, derived.PrescaleDivider, derived.AutoReloadValue); err != nil {
		return s.state, err
	}
	ch, err := ChannelAddressOf(p.ChannelNumber)
	if err != nil {
		return s.state, err
	}
	if s.state == StateRunning {
		if err := s.Stop(); err != nil {
			return s.state, err
		}
	}
	if derived, err = SetFrequency(&p, p.PWMFrequencyHz); err != nil {
		return s.state, err
	}
	s.params = p
	s.derived = derived
	s.channel = ch
	s.state = StateInitialized
	s.log.Debug().
		Str("parameters", p.String()).
		Uint32("prescaler", derived.PrescaleDivider).
		Uint32("auto-reload", derived.AutoReloadValue).
		Float64("period", derived.PeriodUs).
		Msg("Servo initialized")
	return s.state, nil
}

// SetFrequency reprograms the timer of an initialized servo for the given
// frequency and re-validates the parameters.
// On a running servo this causes a short glitch in the output.
func (s *Servo) SetFrequency(hz uint32) error {
	if s.state == StateUninitialized {
		return errors.Wrap(ErrNotInitialized, "cannot set frequency")
	}
	p := s.params
	derived, err := SetFrequency(&p, hz)
	if err != nil {
		return err
	}
	// Registers are programmed now, keep our view in sync with them.
	s.params = p
	s.derived = derived
	if s.state == StateRunning {
		s.log.Warn().Uint32("frequency", hz).Msg("Frequency changed while running")
	}
	return Validate(p)
}

// Start enables the PWM output and sets the pulse width to 0.
// Starting a running servo repeats both steps.
func (s *Servo) Start() error {
	if s.state == StateUninitialized {
		return errors.Wrap(ErrNotInitialized, "cannot start")
	}
	if err := s.params.Timer.StartChannelOutput(s.channel); err != nil {
		return errors.Wrapf(ErrDeviceStartFailed, "channel %d: %s", s.params.ChannelNumber, err)
	}
	s.writePulseWidth(0)
	s.state = StateRunning
	s.log.Debug().Uint8("channel", s.params.ChannelNumber).Msg("Servo started")
	return nil
}

// Stop sets the pulse width to 0 and disables the PWM output.
// The configuration is retained, so the servo can be started again.
func (s *Servo) Stop() error {
	if s.state == StateUninitialized {
		return errors.Wrap(ErrNotInitialized, "cannot stop")
	}
	s.writePulseWidth(0)
	if err := s.params.Timer.StopChannelOutput(s.channel); err != nil {
		return errors.Wrapf(ErrDeviceStopFailed, "channel %d: %s", s.params.ChannelNumber, err)
	}
	s.state = StateInitialized
	s.log.Debug().Uint8("channel", s.params.ChannelNumber).Msg("Servo stopped")
	return nil
}

// Write sets the pulse width (in microseconds) of the output.
// The value is clamped to a full period, then to the max and min pulse
// width (in that order).
// Write is ignored when the servo is not running.
func (s *Servo) Write(pulseWidthUs uint32) {
	if s.state != StateRunning {
		return
	}
	s.writePulseWidth(pulseWidthUs)
}

// Read returns the pulse width (in microseconds) of the output,
// or 0 when the servo is not running.
func (s *Servo) Read() uint32 {
	if s.state != StateRunning {
		return 0
	}
	compare := s.params.Timer.GetCompare(s.channel)
	if compare == 0 && s.zeroPulse {
		return 0
	}
	return compare + 1
}

// WriteDutyCycle sets the pulse width as a percentage (0..100) of the period.
func (s *Servo) WriteDutyCycle(percent float64) {
	if s.state != StateRunning {
		return
	}
	switch {
	case math.IsNaN(percent) || percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	ticks := float64(s.params.Timer.GetAutoReload()) + 1
	s.writePulseWidth(uint32(math.Round(percent / 100 * ticks)))
}

// ReadDutyCycle returns the pulse width as a percentage of the period,
// or 0 when the servo is not running.
func (s *Servo) ReadDutyCycle() float64 {
	if s.state != StateRunning {
		return 0
	}
	ticks := float64(s.params.Timer.GetAutoReload()) + 1
	return 100 * float64(s.Read()) / ticks
}

// writePulseWidth clamps the given pulse width and programs the compare register.
// The compare register matches at the start of a tick, so a pulse of N us
// is programmed as N-1.
func (s *Servo) writePulseWidth(pulseWidthUs uint32) {
	if limit := uint64(s.params.Timer.GetAutoReload()) + 1; uint64(pulseWidthUs) > limit {
		pulseWidthUs = uint32(limit)
	}
	if maxUs := s.params.MaxPulseWidthUs; maxUs > 0 && pulseWidthUs > maxUs {
		pulseWidthUs = maxUs
	}
	if minUs := s.params.MinPulseWidthUs; minUs > 0 && pulseWidthUs < minUs {
		pulseWidthUs = minUs
	}
	var compare uint32
	if pulseWidthUs > 0 {
		compare = pulseWidthUs - 1
	}
	s.params.Timer.SetCompare(s.channel, compare)
	s.zeroPulse = pulseWidthUs == 0
}
