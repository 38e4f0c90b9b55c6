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
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/dustin/go-humanize"

	"github.com/binkynet/ServoTimer/pkg/service"
	"github.com/binkynet/ServoTimer/pkg/servo"
)

const (
	smallStepUs = 10
	largeStepUs = 100
	maxLogLines = 10
)

// LogSource provides recent log lines.
type LogSource interface {
	Lines() []string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("244"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	logStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Zero      key.Binding
	Frequency key.Binding
	Start     key.Binding
	Stop      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k", "+"), key.WithHelp("up/k", fmt.Sprintf("+%dus", smallStepUs))),
		Down:      key.NewBinding(key.WithKeys("down", "j", "-"), key.WithHelp("down/j", fmt.Sprintf("-%dus", smallStepUs))),
		PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", fmt.Sprintf("+%dus", largeStepUs))),
		PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdown", fmt.Sprintf("-%dus", largeStepUs))),
		Zero:      key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "pulse width 0")),
		Frequency: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "next frequency")),
		Start:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start output")),
		Stop:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop output")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "disconnect")),
	}
}

func (k keyMap) all() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Zero, k.Frequency, k.Start, k.Stop, k.Quit}
}

// Root is the model of the servo console.
type Root struct {
	api     service.API
	logs    LogSource
	keys    keyMap
	term    string
	width   int
	height  int
	status  service.Status
	lastErr string
}

var _ tea.Model = Root{}

// New creates the root model for the given service.
func New(api service.API, logs LogSource, term string) Root {
	return Root{
		api:    api,
		logs:   logs,
		keys:   defaultKeyMap(),
		term:   term,
		status: api.Status(),
	}
}

// SSHHandler creates a console model for every SSH session.
type SSHHandler struct {
	API  service.API
	Logs LogSource
}

// Handler grabs the terminal info of the session and passes it to a new model.
func (h SSHHandler) Handler(s ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, _ := s.Pty()
	return New(h.API, h.Logs, pty.Term), []tea.ProgramOption{tea.WithAltScreen()}
}

type statusMsg service.Status

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return doReloadStatus(r.api)
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		r.status = service.Status(msg)
		return r, doReloadStatus(r.api)
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, r.keys.Quit):
			return r, tea.Quit
		case key.Matches(msg, r.keys.Up):
			r.status = r.api.SetPulseWidth(addPulseWidth(r.status.PulseWidthUs, smallStepUs))
		case key.Matches(msg, r.keys.Down):
			r.status = r.api.SetPulseWidth(addPulseWidth(r.status.PulseWidthUs, -smallStepUs))
		case key.Matches(msg, r.keys.PageUp):
			r.status = r.api.SetPulseWidth(addPulseWidth(r.status.PulseWidthUs, largeStepUs))
		case key.Matches(msg, r.keys.PageDown):
			r.status = r.api.SetPulseWidth(addPulseWidth(r.status.PulseWidthUs, -largeStepUs))
		case key.Matches(msg, r.keys.Zero):
			r.status = r.api.SetPulseWidth(0)
		case key.Matches(msg, r.keys.Frequency):
			r = r.withResult(r.api.SetFrequency(nextFrequency(r.status.PWMFrequencyHz)))
		case key.Matches(msg, r.keys.Start):
			r = r.withResult(r.api.Start())
		case key.Matches(msg, r.keys.Stop):
			r = r.withResult(r.api.Stop())
		}
	}
	return r, nil
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("BinkyNet Servo Timer") + "\n\n")

	st := r.status
	rows := [][2]string{
		{"State", st.State.String()},
		{"Channel", fmt.Sprintf("%d", st.Channel)},
		{"Clock", humanize.SI(float64(st.ClockFrequencyHz), "Hz")},
		{"Frequency", humanize.SI(float64(st.PWMFrequencyHz), "Hz")},
		{"Registers", fmt.Sprintf("PSC=%d ARR=%d", st.PrescaleDivider, st.AutoReloadValue)},
		{"Period", fmt.Sprintf("%.0fus", st.PeriodUs)},
		{"Bounds", formatBounds(st.MinPulseWidthUs, st.MaxPulseWidthUs)},
		{"Pulse width", fmt.Sprintf("%dus (%.2f%%)", st.PulseWidthUs, st.DutyCycle)},
	}
	for _, row := range rows {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render(row[0]), row[1]) + "\n")
	}
	if r.lastErr != "" {
		b.WriteString("\n" + errStyle.Render(r.lastErr) + "\n")
	}

	b.WriteString("\n")
	for _, binding := range r.keys.all() {
		h := binding.Help()
		b.WriteString(fmt.Sprintf("%-8s %s\n", h.Key, h.Desc))
	}

	if r.logs != nil {
		lines := r.logs.Lines()
		if len(lines) > maxLogLines {
			lines = lines[len(lines)-maxLogLines:]
		}
		if len(lines) > 0 {
			b.WriteString("\n" + logStyle.Render(strings.Join(lines, "\n")) + "\n")
		}
	}
	return b.String()
}

// withResult stores the given status and the message of the given error (if any).
func (r Root) withResult(status service.Status, err error) Root {
	r.status = status
	r.lastErr = ""
	if err != nil {
		r.lastErr = err.Error()
	}
	return r
}

// addPulseWidth adds the given delta to the given pulse width, without
// going below 0.
func addPulseWidth(pulseWidthUs uint32, delta int) uint32 {
	v := int64(pulseWidthUs) + int64(delta)
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// nextFrequency returns the supported frequency that follows the given one.
func nextFrequency(hz uint32) uint32 {
	for i, f := range servo.SupportedFrequencies {
		if f == hz {
			return servo.SupportedFrequencies[(i+1)%len(servo.SupportedFrequencies)]
		}
	}
	return servo.SupportedFrequencies[0]
}

func formatBounds(minUs, maxUs uint32) string {
	format := func(v uint32) string {
		if v == 0 {
			return "-"
		}
		return fmt.Sprintf("%dus", v)
	}
	return format(minUs) + " .. " + format(maxUs)
}

func doReloadStatus(api service.API) tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statusMsg(api.Status())
	})
}
