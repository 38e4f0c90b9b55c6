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

// ChannelAddress is the encoding a timer device uses to address one of
// its capture/compare channels.
type ChannelAddress uint32

const (
	Channel1 ChannelAddress = 0x00
	Channel2 ChannelAddress = 0x04
	Channel3 ChannelAddress = 0x08
	Channel4 ChannelAddress = 0x0C

	// ChannelCount is the number of channels of a single timer.
	ChannelCount = 4
)

// TimerDevice contains the API of a (clock enabled) hardware timer that
// is needed to generate a PWM signal on one of its channels.
// Prescaler and auto-reload registers are shared by all channels of the timer.
type TimerDevice interface {
	// StartChannelOutput enables PWM output on the given channel.
	StartChannelOutput(ch ChannelAddress) error
	// StopChannelOutput disables PWM output on the given channel.
	StopChannelOutput(ch ChannelAddress) error
	// SetPrescaleDivider programs the prescaler register (PSC).
	SetPrescaleDivider(value uint32)
	// GetPrescaleDivider returns the programmed prescaler register (PSC).
	GetPrescaleDivider() uint32
	// SetAutoReload programs the auto-reload register (ARR).
	SetAutoReload(value uint32)
	// GetAutoReload returns the programmed auto-reload register (ARR).
	GetAutoReload() uint32
	// SetCompare programs the compare register of the given channel.
	SetCompare(ch ChannelAddress, value uint32)
	// GetCompare returns the compare register of the given channel.
	GetCompare(ch ChannelAddress) uint32
}

// ChannelAddressOf resolves a channel number (1..4) into its channel address.
func ChannelAddressOf(channelNumber uint8) (ChannelAddress, error) {
	switch channelNumber {
	case 1:
		return Channel1, nil
	case 2:
		return Channel2, nil
	case 3:
		return Channel3, nil
	case 4:
		return Channel4, nil
	default:
		return 0, errors.Wrapf(ErrInvalidChannel, "channel number %d is not in 1..%d", channelNumber, ChannelCount)
	}
}

// Number returns the channel number (1..4) of the address,
// or 0 if the address is not valid.
func (ch ChannelAddress) Number() uint8 {
	switch ch {
	case Channel1:
		return 1
	case Channel2:
		return 2
	case Channel3:
		return 3
	case Channel4:
		return 4
	default:
		return 0
	}
}
