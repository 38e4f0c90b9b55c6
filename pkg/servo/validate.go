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
	"github.com/pkg/errors"
)

// Validate checks the given parameters against each other and against
// the registers currently programmed in its timer.
// It has no side effects.
func Validate(p Parameters) error {
	if p.Timer == nil {
		return validate(p, 0, 0)
	}
	return validate(p, p.Timer.GetPrescaleDivider(), p.Timer.GetAutoReload())
}

// validate checks the given parameters against each other and against
// the given prescaler & auto-reload register values.
func validate(p Parameters, prescaleDivider, autoReload uint32) error {
	if p.ChannelNumber < 1 || p.ChannelNumber > ChannelCount {
		return errors.Wrapf(ErrInvalidChannel, "channel number %d is not in 1..%d", p.ChannelNumber, ChannelCount)
	}
	if p.ClockFrequencyHz == 0 {
		return errors.Wrap(ErrInvalidClock, "clock frequency must be > 0")
	}
	if p.Timer == nil {
		return errors.Wrap(ErrMissingDevice, "timer device is required")
	}
	if !IsSupportedFrequency(p.PWMFrequencyHz) {
		return errors.Wrapf(ErrInvalidFrequency, "frequency %dHz is not one of %v", p.PWMFrequencyHz, SupportedFrequencies)
	}
	if p.MinPulseWidthUs > 0 && p.MaxPulseWidthUs > 0 && p.MaxPulseWidthUs <= p.MinPulseWidthUs {
		return errors.Wrapf(ErrInvalidPulseBounds, "max pulse width %dus must be larger than min pulse width %dus", p.MaxPulseWidthUs, p.MinPulseWidthUs)
	}

	// Check register values
	psc := uint64(prescaleDivider)
	arr := uint64(autoReload)
	if uint64(p.ClockFrequencyHz) != TickFrequencyHz*(psc+1) {
		return errors.Wrapf(ErrInvalidClock, "prescaler %d does not produce a 1us tick from %dHz", psc, p.ClockFrequencyHz)
	}
	if uint64(p.ClockFrequencyHz) != uint64(p.PWMFrequencyHz)*(arr+1)*(psc+1) {
		return errors.Wrapf(ErrInvalidFrequency, "timer frequency does not match %dHz (prescaler=%d, auto-reload=%d)", p.PWMFrequencyHz, psc, arr)
	}
	ticks := arr + 1
	if p.MinPulseWidthUs > 0 && uint64(p.MinPulseWidthUs) >= ticks {
		return errors.Wrapf(ErrPulseBoundsExceedPeriod, "min pulse width %dus does not fit in a period of %d ticks", p.MinPulseWidthUs, ticks)
	}
	if p.MaxPulseWidthUs > 0 && uint64(p.MaxPulseWidthUs) >= ticks {
		return errors.Wrapf(ErrPulseBoundsExceedPeriod, "max pulse width %dus does not fit in a period of %d ticks", p.MaxPulseWidthUs, ticks)
	}
	return nil
}
