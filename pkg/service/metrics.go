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
	"github.com/binkynet/ServoTimer/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	// Current lifecycle state of the servo
	stateGauge = metrics.MustRegisterGauge(subSystem,
		"servo_state",
		"Current lifecycle state of the servo (0=uninitialized, 1=initialized, 2=running)")
	// Current pulse width of the servo in microseconds
	pulseWidthGauge = metrics.MustRegisterGauge(subSystem,
		"servo_pulse_width_us",
		"Current pulse width of the servo in microseconds")
	// Current PWM frequency of the servo in Hz
	frequencyGauge = metrics.MustRegisterGauge(subSystem,
		"servo_frequency_hz",
		"Current PWM frequency of the servo in Hz")
	// Total number of SetPulseWidth calls
	setPulseWidthTotal = metrics.MustRegisterCounter(subSystem,
		"set_pulse_width_total",
		"Total number of SetPulseWidth calls")
	// Total number of SetDutyCycle calls
	setDutyCycleTotal = metrics.MustRegisterCounter(subSystem,
		"set_duty_cycle_total",
		"Total number of SetDutyCycle calls")
	// Total number of SetFrequency calls
	setFrequencyTotal = metrics.MustRegisterCounter(subSystem,
		"set_frequency_total",
		"Total number of SetFrequency calls")
	// Total number of Start calls
	startTotal = metrics.MustRegisterCounter(subSystem,
		"start_total",
		"Total number of Start calls")
	// Total number of Stop calls
	stopTotal = metrics.MustRegisterCounter(subSystem,
		"stop_total",
		"Total number of Stop calls")
)
