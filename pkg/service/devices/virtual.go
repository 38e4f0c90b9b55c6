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
	"sync"

	"github.com/pkg/errors"

	"github.com/binkynet/ServoTimer/pkg/servo"
)

const (
	// Reset values of the prescaler & auto-reload registers.
	resetPrescaleDivider = 0
	resetAutoReload      = 0xFFFF
)

// VirtualTimer is an in-memory timer device.
type VirtualTimer struct {
	mutex    sync.Mutex
	psc      uint32
	arr      uint32
	compare  [servo.ChannelCount]uint32
	enabled  [servo.ChannelCount]bool
	startErr error
	stopErr  error
}

var _ Timer = &VirtualTimer{}

// NewVirtualTimer creates a virtual timer with its registers in reset state.
func NewVirtualTimer() *VirtualTimer {
	return &VirtualTimer{
		psc: resetPrescaleDivider,
		arr: resetAutoReload,
	}
}

// Configure is called once to put the device in the desired state.
func (t *VirtualTimer) Configure(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.psc = resetPrescaleDivider
	t.arr = resetAutoReload
	for i := range t.compare {
		t.compare[i] = 0
		t.enabled[i] = false
	}
	return nil
}

// Close brings the device back to a safe state.
func (t *VirtualTimer) Close(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for i := range t.compare {
		t.compare[i] = 0
		t.enabled[i] = false
	}
	return nil
}

// SetFailures configures errors returned by StartChannelOutput and
// StopChannelOutput. Pass nil to succeed again.
func (t *VirtualTimer) SetFailures(startErr, stopErr error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.startErr = startErr
	t.stopErr = stopErr
}

// ChannelEnabled returns true if PWM output is enabled on the given channel.
func (t *VirtualTimer) ChannelEnabled(ch servo.ChannelAddress) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if idx, ok := channelIndex(ch); ok {
		return t.enabled[idx]
	}
	return false
}

// StartChannelOutput enables PWM output on the given channel.
func (t *VirtualTimer) StartChannelOutput(ch servo.ChannelAddress) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	idx, ok := channelIndex(ch)
	if !ok {
		return errors.Errorf("invalid channel address %#x", uint32(ch))
	}
	if t.startErr != nil {
		return t.startErr
	}
	t.enabled[idx] = true
	return nil
}

// StopChannelOutput disables PWM output on the given channel.
func (t *VirtualTimer) StopChannelOutput(ch servo.ChannelAddress) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	idx, ok := channelIndex(ch)
	if !ok {
		return errors.Errorf("invalid channel address %#x", uint32(ch))
	}
	if t.stopErr != nil {
		return t.stopErr
	}
	t.enabled[idx] = false
	return nil
}

// SetPrescaleDivider programs the prescaler register.
func (t *VirtualTimer) SetPrescaleDivider(value uint32) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.psc = value
}

// GetPrescaleDivider returns the prescaler register.
func (t *VirtualTimer) GetPrescaleDivider() uint32 {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.psc
}

// SetAutoReload programs the auto-reload register.
func (t *VirtualTimer) SetAutoReload(value uint32) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.arr = value
}

// GetAutoReload returns the auto-reload register.
func (t *VirtualTimer) GetAutoReload() uint32 {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.arr
}

// SetCompare programs the compare register of the given channel.
// Invalid channels are ignored.
func (t *VirtualTimer) SetCompare(ch servo.ChannelAddress, value uint32) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if idx, ok := channelIndex(ch); ok {
		t.compare[idx] = value
	}
}

// GetCompare returns the compare register of the given channel.
func (t *VirtualTimer) GetCompare(ch servo.ChannelAddress) uint32 {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if idx, ok := channelIndex(ch); ok {
		return t.compare[idx]
	}
	return 0
}

// channelIndex returns the 0 based index of the given channel.
func channelIndex(ch servo.ChannelAddress) (int, bool) {
	n := ch.Number()
	if n == 0 {
		return 0, false
	}
	return int(n) - 1, true
}
