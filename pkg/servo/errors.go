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

var (
	// ErrInvalidChannel is returned when the channel number is not in 1..4.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidClock is returned when the clock frequency cannot produce a 1us tick.
	ErrInvalidClock = errors.New("invalid clock frequency")
	// ErrMissingDevice is returned when no timer device is configured.
	ErrMissingDevice = errors.New("missing timer device")
	// ErrInvalidFrequency is returned for PWM frequencies outside the supported set.
	ErrInvalidFrequency = errors.New("invalid pwm frequency")
	// ErrInvalidPulseBounds is returned when max pulse width <= min pulse width.
	ErrInvalidPulseBounds = errors.New("invalid pulse width bounds")
	// ErrPulseBoundsExceedPeriod is returned when a pulse width bound does not fit in one period.
	ErrPulseBoundsExceedPeriod = errors.New("pulse width bounds exceed period")
	// ErrNotInitialized is returned by start/stop before a successful initialize.
	ErrNotInitialized = errors.New("not initialized")
	// ErrDeviceStartFailed is returned when the device fails to enable PWM output.
	ErrDeviceStartFailed = errors.New("device start failed")
	// ErrDeviceStopFailed is returned when the device fails to disable PWM output.
	ErrDeviceStopFailed = errors.New("device stop failed")
)

// IsValidationError returns true if the cause of the given error is
// one of the parameter validation or configuration errors.
func IsValidationError(err error) bool {
	switch errors.Cause(err) {
	case ErrInvalidChannel, ErrInvalidClock, ErrMissingDevice, ErrInvalidFrequency,
		ErrInvalidPulseBounds, ErrPulseBoundsExceedPeriod:
		return true
	}
	return false
}

// IsDeviceError returns true if the cause of the given error is a failure
// reported by the timer device.
func IsDeviceError(err error) bool {
	switch errors.Cause(err) {
	case ErrDeviceStartFailed, ErrDeviceStopFailed:
		return true
	}
	return false
}
