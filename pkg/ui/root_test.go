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

package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/binkynet/ServoTimer/pkg/service"
	"github.com/binkynet/ServoTimer/pkg/servo"
)

type fakeAPI struct {
	status  service.Status
	writes  []uint32
	freqErr error
	started int
	stopped int
}

func (f *fakeAPI) Status() service.Status { return f.status }

func (f *fakeAPI) SetPulseWidth(pulseWidthUs uint32) service.Status {
	f.writes = append(f.writes, pulseWidthUs)
	f.status.PulseWidthUs = pulseWidthUs
	return f.status
}

func (f *fakeAPI) SetDutyCycle(percent float64) service.Status {
	f.status.DutyCycle = percent
	return f.status
}

func (f *fakeAPI) SetFrequency(hz uint32) (service.Status, error) {
	if f.freqErr != nil {
		return f.status, f.freqErr
	}
	f.status.PWMFrequencyHz = hz
	return f.status, nil
}

func (f *fakeAPI) Start() (service.Status, error) {
	f.started++
	f.status.State = servo.StateRunning
	return f.status, nil
}

func (f *fakeAPI) Stop() (service.Status, error) {
	f.stopped++
	f.status.State = servo.StateInitialized
	return f.status, nil
}

func (f *fakeAPI) Subscribe(cb func(service.Status)) context.CancelFunc { return func() {} }

type fakeLogs []string

func (l fakeLogs) Lines() []string { return l }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, r Root, msg tea.Msg) Root {
	t.Helper()
	m, _ := r.Update(msg)
	root, ok := m.(Root)
	if !ok {
		t.Fatalf("Expected Root model, got %T", m)
	}
	return root
}

func TestPulseWidthKeys(t *testing.T) {
	api := &fakeAPI{status: service.Status{State: servo.StateRunning, PWMFrequencyHz: 50, PulseWidthUs: 1500}}
	r := New(api, nil, "xterm")

	r = press(t, r, tea.KeyMsg{Type: tea.KeyUp})
	r = press(t, r, tea.KeyMsg{Type: tea.KeyPgDown})
	r = press(t, r, runes("j"))
	r = press(t, r, runes("0"))
	r = press(t, r, tea.KeyMsg{Type: tea.KeyDown})

	expected := []uint32{1510, 1410, 1400, 0, 0}
	if len(api.writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %v", len(expected), api.writes)
	}
	for i, v := range expected {
		if api.writes[i] != v {
			t.Errorf("Write %d: expected %d, got %d", i, v, api.writes[i])
		}
	}
	if r.status.PulseWidthUs != 0 {
		t.Errorf("Expected status pulse width 0, got %d", r.status.PulseWidthUs)
	}
}

func TestFrequencyKey(t *testing.T) {
	api := &fakeAPI{status: service.Status{PWMFrequencyHz: 400}}
	r := New(api, nil, "")

	r = press(t, r, runes("f"))
	if r.status.PWMFrequencyHz != 50 {
		t.Errorf("Expected wrap around to 50Hz, got %d", r.status.PWMFrequencyHz)
	}
	r = press(t, r, runes("f"))
	if r.status.PWMFrequencyHz != 100 {
		t.Errorf("Expected 100Hz, got %d", r.status.PWMFrequencyHz)
	}

	api.freqErr = errors.New("pulse bounds exceed period")
	r = press(t, r, runes("f"))
	if r.lastErr != "pulse bounds exceed period" {
		t.Errorf("Expected error to be shown, got '%s'", r.lastErr)
	}
	if !strings.Contains(r.View(), "pulse bounds exceed period") {
		t.Error("Expected error in view")
	}
}

func TestStartStopKeys(t *testing.T) {
	api := &fakeAPI{status: service.Status{State: servo.StateInitialized}}
	r := New(api, nil, "")

	r = press(t, r, runes("s"))
	if api.started != 1 || r.status.State != servo.StateRunning {
		t.Errorf("Expected started servo, got %d starts in state %s", api.started, r.status.State)
	}
	r = press(t, r, runes("x"))
	if api.stopped != 1 || r.status.State != servo.StateInitialized {
		t.Errorf("Expected stopped servo, got %d stops in state %s", api.stopped, r.status.State)
	}
}

func TestQuitKey(t *testing.T) {
	r := New(&fakeAPI{}, nil, "")
	_, cmd := r.Update(runes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected QuitMsg")
	}
}

func TestStatusMessage(t *testing.T) {
	api := &fakeAPI{}
	r := New(api, nil, "")
	m, cmd := r.Update(statusMsg(service.Status{State: servo.StateRunning, PulseWidthUs: 1234}))
	if cmd == nil {
		t.Error("Expected next reload to be scheduled")
	}
	if got := m.(Root).status.PulseWidthUs; got != 1234 {
		t.Errorf("Expected pulse width 1234, got %d", got)
	}
}

func TestView(t *testing.T) {
	api := &fakeAPI{status: service.Status{
		State:            servo.StateRunning,
		ClockFrequencyHz: 72000000,
		Channel:          2,
		PWMFrequencyHz:   50,
		PrescaleDivider:  71,
		AutoReloadValue:  19999,
		PulseWidthUs:     1500,
		DutyCycle:        7.5,
	}}
	var logs fakeLogs
	for i := 0; i < 20; i++ {
		logs = append(logs, "line")
	}
	logs = append(logs, "latest log line")
	view := New(api, logs, "").View()
	for _, s := range []string{"running", "PSC=71 ARR=19999", "1500us (7.50%)", "72 MHz", "latest log line"} {
		if !strings.Contains(view, s) {
			t.Errorf("Expected view to contain '%s'\n%s", s, view)
		}
	}
	if n := strings.Count(view, "line"); n != maxLogLines {
		t.Errorf("Expected %d log lines in view, got %d", maxLogLines, n)
	}
}
