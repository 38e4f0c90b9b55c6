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

// State of the servo lifecycle.
type State int

const (
	// StateUninitialized is the state of a newly created servo.
	StateUninitialized State = iota
	// StateInitialized means registers are programmed and parameters validated.
	// The PWM output is disabled.
	StateInitialized
	// StateRunning means the PWM output is enabled.
	StateRunning
)

// String returns a human readable name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalText returns the name of the state.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the name of a state.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateUninitialized, StateInitialized, StateRunning} {
		if string(text) == st.String() {
			*s = st
			return nil
		}
	}
	return errors.Errorf("unknown state '%s'", string(text))
}
