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
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// fakeTimer is an in-memory TimerDevice.
type fakeTimer struct {
	psc, arr  uint32
	compare   map[ChannelAddress]uint32
	enabled   map[ChannelAddress]bool
	startErr  error
	stopErr   error
	arrWrites int
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{
		compare: make(map[ChannelAddress]uint32),
		enabled: make(map[ChannelAddress]bool),
	}
}

func (t *fakeTimer) StartChannelOutput(ch ChannelAddress) error {
	if t.startErr != nil {
		return t.startErr
	}
	t.enabled[ch] = true
	return nil
}

func (t *fakeTimer) StopChannelOutput(ch ChannelAddress) error {
	if t.stopErr != nil {
		return t.stopErr
	}
	t.enabled[ch] = false
	return nil
}

func (t *fakeTimer) SetPrescaleDivider(value uint32)            { t.psc = value }
func (t *fakeTimer) GetPrescaleDivider() uint32                 { return t.psc }
func (t *fakeTimer) SetAutoReload(value uint32)                 { t.arr = value; t.arrWrites++ }
func (t *fakeTimer) GetAutoReload() uint32                      { return t.arr }
func (t *fakeTimer) SetCompare(ch ChannelAddress, value uint32) { t.compare[ch] = value }
func (t *fakeTimer) GetCompare(ch ChannelAddress) uint32        { return t.compare[ch] }

func defaultParameters(timer TimerDevice) Parameters {
	return Parameters{
		Timer:            timer,
		ClockFrequencyHz: 72000000,
		ChannelNumber:    1,
		PWMFrequencyHz:   50,
	}
}

func runningServo(t *testing.T, p Parameters) *Servo {
	s := New(zerolog.Nop())
	if _, err := s.Initialize(p); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return s
}

func TestDeriveSupportedFrequencies(t *testing.T) {
	clocks := []uint32{1000000, 8000000, 72000000, 168000000, 480000000}
	for _, clock := range clocks {
		for _, f := range SupportedFrequencies {
			d, err := Derive(clock, f)
			if err != nil {
				t.Fatalf("Derive(%d, %d) failed: %v", clock, f, err)
			}
			if expected := 1000000/f - 1; d.AutoReloadValue != expected {
				t.Errorf("Expected auto-reload %d, got %d", expected, d.AutoReloadValue)
			}
			if (d.AutoReloadValue+1)*f != 1000000 {
				t.Errorf("Period of %d ticks is not exact for %dHz", d.AutoReloadValue+1, f)
			}
			if expected := clock/1000000 - 1; d.PrescaleDivider != expected {
				t.Errorf("Expected prescaler %d, got %d", expected, d.PrescaleDivider)
			}
		}
	}
}

func TestDeriveErrors(t *testing.T) {
	if _, err := Derive(72000000, 60); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("Expected ErrInvalidFrequency, got %v", err)
	}
	if _, err := Derive(500000, 50); !errors.Is(err, ErrInvalidClock) {
		t.Errorf("Expected ErrInvalidClock, got %v", err)
	}
}

func TestScenario1MHz50Hz(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	p.ClockFrequencyHz = 1000000
	s := runningServo(t, p)

	d := s.DerivedConfiguration()
	if d.PrescaleDivider != 0 {
		t.Errorf("Expected prescaler 0, got %d", d.PrescaleDivider)
	}
	if d.AutoReloadValue != 19999 {
		t.Errorf("Expected auto-reload 19999, got %d", d.AutoReloadValue)
	}
	if d.PeriodUs != 20000.0 {
		t.Errorf("Expected period 20000.0, got %f", d.PeriodUs)
	}
	s.Write(1500)
	if c := timer.compare[Channel1]; c != 1499 {
		t.Errorf("Expected compare 1499, got %d", c)
	}
	if v := s.Read(); v != 1500 {
		t.Errorf("Expected read 1500, got %d", v)
	}
}

func TestInitializeInvalidFrequency(t *testing.T) {
	for _, f := range []uint32{0, 60, 1000} {
		p := defaultParameters(newFakeTimer())
		p.PWMFrequencyHz = f
		s := New(zerolog.Nop())
		state, err := s.Initialize(p)
		if !errors.Is(err, ErrInvalidFrequency) {
			t.Errorf("Frequency %d: expected ErrInvalidFrequency, got %v", f, err)
		}
		if state != StateUninitialized {
			t.Errorf("Expected state uninitialized, got %s", state)
		}
	}
}

func TestInitializeInvalidChannel(t *testing.T) {
	for _, ch := range []uint8{0, 5} {
		p := defaultParameters(newFakeTimer())
		p.ChannelNumber = ch
		s := New(zerolog.Nop())
		if _, err := s.Initialize(p); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Channel %d: expected ErrInvalidChannel, got %v", ch, err)
		}
		if s.State() != StateUninitialized {
			t.Errorf("Expected state uninitialized, got %s", s.State())
		}
	}
}

func TestInitializeErrors(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(p *Parameters)
		expected error
	}{
		{"zero clock", func(p *Parameters) { p.ClockFrequencyHz = 0 }, ErrInvalidClock},
		{"clock without 1us tick", func(p *Parameters) { p.ClockFrequencyHz = 1500000 }, ErrInvalidClock},
		{"missing device", func(p *Parameters) { p.Timer = nil }, ErrMissingDevice},
		{"equal bounds", func(p *Parameters) { p.MinPulseWidthUs, p.MaxPulseWidthUs = 1000, 1000 }, ErrInvalidPulseBounds},
		{"inverted bounds", func(p *Parameters) { p.MinPulseWidthUs, p.MaxPulseWidthUs = 2000, 1000 }, ErrInvalidPulseBounds},
		{"max exceeds period", func(p *Parameters) { p.PWMFrequencyHz, p.MaxPulseWidthUs = 400, 2500 }, ErrPulseBoundsExceedPeriod},
		{"min exceeds period", func(p *Parameters) { p.MinPulseWidthUs = 20000 }, ErrPulseBoundsExceedPeriod},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := defaultParameters(newFakeTimer())
			test.modify(&p)
			s := New(zerolog.Nop())
			if _, err := s.Initialize(p); !errors.Is(err, test.expected) {
				t.Errorf("Expected %v, got %v", test.expected, err)
			}
			if s.State() != StateUninitialized {
				t.Errorf("Expected state uninitialized, got %s", s.State())
			}
		})
	}
}

func TestValidateEqualBounds(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	if _, err := SetFrequency(&p, 50); err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}
	if err := Validate(p); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	p.MinPulseWidthUs = 1000
	p.MaxPulseWidthUs = 1000
	err := Validate(p)
	if !errors.Is(err, ErrInvalidPulseBounds) {
		t.Errorf("Expected ErrInvalidPulseBounds, got %v", err)
	}
	if !IsValidationError(err) {
		t.Error("Expected a validation error")
	}
}

func TestValidateDetectsForeignRegisters(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	if _, err := SetFrequency(&p, 50); err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}
	timer.SetAutoReload(9999)
	if err := Validate(p); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("Expected ErrInvalidFrequency, got %v", err)
	}
	timer.SetAutoReload(19999)
	timer.SetPrescaleDivider(35)
	if err := Validate(p); !errors.Is(err, ErrInvalidClock) {
		t.Errorf("Expected ErrInvalidClock, got %v", err)
	}
}

func TestSetFrequencyIdempotent(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	d1, err := SetFrequency(&p, 200)
	if err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}
	psc, arr := timer.psc, timer.arr
	d2, err := SetFrequency(&p, 200)
	if err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}
	if d1 != d2 {
		t.Errorf("Expected identical derived configuration, got %+v and %+v", d1, d2)
	}
	if timer.psc != psc || timer.arr != arr || timer.arrWrites != 2 {
		t.Errorf("Expected identical registers to be reprogrammed")
	}
	if p.PWMFrequencyHz != 200 {
		t.Errorf("Expected frequency 200, got %d", p.PWMFrequencyHz)
	}
	if d1.PeriodUs != 5000 || d1.AutoReloadValue != 4999 {
		t.Errorf("Unexpected derived configuration %+v", d1)
	}
}

func TestSetFrequencyRejectsUnsupported(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	if _, err := SetFrequency(&p, 60); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("Expected ErrInvalidFrequency, got %v", err)
	}
	if timer.arrWrites != 0 {
		t.Error("Expected no registers to be programmed")
	}
	if p.PWMFrequencyHz != 50 {
		t.Errorf("Expected frequency to be unchanged, got %d", p.PWMFrequencyHz)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range SupportedFrequencies {
		timer := newFakeTimer()
		p := defaultParameters(timer)
		p.PWMFrequencyHz = f
		s := runningServo(t, p)
		limit := s.DerivedConfiguration().AutoReloadValue + 1
		for x := uint32(0); x <= limit; x++ {
			s.Write(x)
			if v := s.Read(); v != x {
				t.Fatalf("%dHz: write(%d) read back %d", f, x, v)
			}
		}
		// Beyond a full period the value is clamped
		s.Write(limit + 100)
		if v := s.Read(); v != limit {
			t.Errorf("%dHz: expected clamp to %d, got %d", f, limit, v)
		}
	}
}

func TestClamping(t *testing.T) {
	p := defaultParameters(newFakeTimer())
	p.MinPulseWidthUs = 1000
	p.MaxPulseWidthUs = 2000
	s := runningServo(t, p)

	tests := []struct {
		write    uint32
		expected uint32
	}{
		{500, 1000},
		{5000, 2000},
		{1500, 1500},
		{0, 1000},
		{1000, 1000},
		{2000, 2000},
		{100000, 2000},
	}
	for _, test := range tests {
		s.Write(test.write)
		if v := s.Read(); v != test.expected {
			t.Errorf("write(%d): expected %d, got %d", test.write, test.expected, v)
		}
	}
}

func TestWriteReadBeforeStart(t *testing.T) {
	timer := newFakeTimer()
	s := New(zerolog.Nop())
	s.Write(100)
	if v := s.Read(); v != 0 {
		t.Errorf("Expected 0, got %d", v)
	}
	if _, err := s.Initialize(defaultParameters(timer)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	timer.compare[Channel1] = 1234
	s.Write(100)
	if c := timer.compare[Channel1]; c != 1234 {
		t.Errorf("Expected write to be ignored, compare is %d", c)
	}
	if v := s.Read(); v != 0 {
		t.Errorf("Expected 0, got %d", v)
	}
}

func TestStartStop(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	p.ChannelNumber = 3
	s := New(zerolog.Nop())
	if err := s.Start(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if err := s.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if state, err := s.Initialize(p); err != nil || state != StateInitialized {
		t.Fatalf("Initialize failed: %v (%s)", err, state)
	}
	if s.ChannelAddress() != Channel3 {
		t.Errorf("Expected channel 3, got %#x", s.ChannelAddress())
	}
	// Stop from initialized is allowed
	if err := s.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		timer.compare[Channel3] = 777
		if err := s.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if s.State() != StateRunning || !timer.enabled[Channel3] {
			t.Fatalf("Expected running with output enabled")
		}
		if v := s.Read(); v != 0 {
			t.Errorf("Expected 0 after start, got %d", v)
		}
	}
	s.Write(1500)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.State() != StateInitialized || timer.enabled[Channel3] {
		t.Errorf("Expected initialized with output disabled")
	}
	if c := timer.compare[Channel3]; c != 0 {
		t.Errorf("Expected compare 0 after stop, got %d", c)
	}
	if v := s.Read(); v != 0 {
		t.Errorf("Expected 0 after stop, got %d", v)
	}
}

func TestDeviceFailures(t *testing.T) {
	timer := newFakeTimer()
	s := New(zerolog.Nop())
	if _, err := s.Initialize(defaultParameters(timer)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	timer.startErr = fmt.Errorf("HAL error")
	err := s.Start()
	if !errors.Is(err, ErrDeviceStartFailed) || !IsDeviceError(err) {
		t.Errorf("Expected ErrDeviceStartFailed, got %v", err)
	}
	if s.State() != StateInitialized {
		t.Errorf("Expected state initialized, got %s", s.State())
	}

	timer.startErr = nil
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	timer.stopErr = fmt.Errorf("HAL error")
	if err := s.Stop(); !errors.Is(err, ErrDeviceStopFailed) {
		t.Errorf("Expected ErrDeviceStopFailed, got %v", err)
	}
	if s.State() != StateRunning {
		t.Errorf("Expected state running, got %s", s.State())
	}
}

func TestServoSetFrequency(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	p.MaxPulseWidthUs = 3000
	s := New(zerolog.Nop())
	if err := s.SetFrequency(100); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	s = runningServo(t, p)
	if err := s.SetFrequency(100); err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}
	if timer.arr != 9999 || s.Parameters().PWMFrequencyHz != 100 {
		t.Errorf("Expected 100Hz registers, got arr=%d", timer.arr)
	}
	if s.State() != StateRunning {
		t.Errorf("Expected state running, got %s", s.State())
	}
	// 400Hz has a 2500us period, max pulse width no longer fits.
	if err := s.SetFrequency(400); !errors.Is(err, ErrPulseBoundsExceedPeriod) {
		t.Errorf("Expected ErrPulseBoundsExceedPeriod, got %v", err)
	}
	if err := s.SetFrequency(60); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("Expected ErrInvalidFrequency, got %v", err)
	}
}

func TestDutyCycle(t *testing.T) {
	s := runningServo(t, defaultParameters(newFakeTimer()))
	s.WriteDutyCycle(7.5)
	if v := s.Read(); v != 1500 {
		t.Errorf("Expected 1500, got %d", v)
	}
	if d := s.ReadDutyCycle(); d != 7.5 {
		t.Errorf("Expected 7.5, got %f", d)
	}
	s.WriteDutyCycle(150)
	if v := s.Read(); v != 20000 {
		t.Errorf("Expected 20000, got %d", v)
	}
	s.WriteDutyCycle(-1)
	if v := s.Read(); v != 0 {
		t.Errorf("Expected 0, got %d", v)
	}
}

func TestChannelAddress(t *testing.T) {
	for n := uint8(1); n <= ChannelCount; n++ {
		ch, err := ChannelAddressOf(n)
		if err != nil {
			t.Fatalf("ChannelAddressOf(%d) failed: %v", n, err)
		}
		if ch.Number() != n {
			t.Errorf("Expected number %d, got %d", n, ch.Number())
		}
	}
	if ChannelAddress(0x10).Number() != 0 {
		t.Error("Expected invalid address to have number 0")
	}
}

func TestStateText(t *testing.T) {
	for _, st := range []State{StateUninitialized, StateInitialized, StateRunning} {
		text, err := st.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText failed: %v", err)
		}
		var parsed State
		if err := parsed.UnmarshalText(text); err != nil {
			t.Errorf("UnmarshalText(%s) failed: %v", text, err)
		} else if parsed != st {
			t.Errorf("Expected %s, got %s", st, parsed)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("flying")); err == nil {
		t.Error("Expected error for unknown state")
	}
}

func TestReinitializeRunning(t *testing.T) {
	timer := newFakeTimer()
	p := defaultParameters(timer)
	s := runningServo(t, p)
	s.Write(1500)
	arrWrites := timer.arrWrites

	invalid := []func(p *Parameters){
		func(p *Parameters) { p.PWMFrequencyHz = 60 },
		func(p *Parameters) { p.ChannelNumber = 5 },
		func(p *Parameters) { p.MinPulseWidthUs, p.MaxPulseWidthUs = 2000, 1000 },
		func(p *Parameters) { p.PWMFrequencyHz, p.MaxPulseWidthUs = 400, 2500 },
	}
	for i, modify := range invalid {
		np := p
		modify(&np)
		state, err := s.Initialize(np)
		if err == nil {
			t.Fatalf("Case %d: expected error", i)
		}
		if state != StateRunning || s.State() != StateRunning {
			t.Errorf("Case %d: expected state running, got %s", i, s.State())
		}
		if !timer.enabled[Channel1] {
			t.Errorf("Case %d: expected output to stay enabled", i)
		}
		if v := s.Read(); v != 1500 {
			t.Errorf("Case %d: expected pulse width 1500, got %d", i, v)
		}
		if timer.arrWrites != arrWrites {
			t.Errorf("Case %d: expected registers to be untouched", i)
		}
	}

	// Valid parameters stop the output and reprogram the timer
	np := p
	np.PWMFrequencyHz = 100
	state, err := s.Initialize(np)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if state != StateInitialized {
		t.Errorf("Expected state initialized, got %s", state)
	}
	if timer.enabled[Channel1] {
		t.Error("Expected output to be disabled")
	}
	if timer.arr != 9999 {
		t.Errorf("Expected auto-reload 9999, got %d", timer.arr)
	}
}
