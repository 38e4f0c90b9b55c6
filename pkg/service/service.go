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
	"context"
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoTimer/pkg/service/devices"
	"github.com/binkynet/ServoTimer/pkg/servo"
)

// API of the service, used by the server & UI.
type API interface {
	// Status returns the status of the servo after its last change.
	Status() Status
	// SetPulseWidth sets the pulse width (in microseconds) of a running servo.
	SetPulseWidth(pulseWidthUs uint32) Status
	// SetDutyCycle sets the pulse width (in percent of the period) of a running servo.
	SetDutyCycle(percent float64) Status
	// SetFrequency reprograms the PWM frequency.
	SetFrequency(hz uint32) (Status, error)
	// Start the PWM output.
	Start() (Status, error)
	// Stop the PWM output.
	Stop() (Status, error)
	// Subscribe registers a callback that is called after every status change.
	Subscribe(cb func(Status)) context.CancelFunc
}

// Service runs a single servo output.
type Service interface {
	API
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
}

// Config of the servo output.
type Config struct {
	ClockFrequencyHz uint32
	ChannelNumber    uint8
	PWMFrequencyHz   uint32
	MinPulseWidthUs  uint32
	MaxPulseWidthUs  uint32
	// Pulse width written after starting (0 = none)
	InitialPulseWidthUs uint32
}

// Parameters returns the servo parameters for the given timer.
func (c Config) Parameters(timer servo.TimerDevice) servo.Parameters {
	return servo.Parameters{
		Timer:            timer,
		ClockFrequencyHz: c.ClockFrequencyHz,
		ChannelNumber:    c.ChannelNumber,
		PWMFrequencyHz:   c.PWMFrequencyHz,
		MinPulseWidthUs:  c.MinPulseWidthUs,
		MaxPulseWidthUs:  c.MaxPulseWidthUs,
	}
}

type Dependencies struct {
	Logger zerolog.Logger
	Timer  devices.Timer
}

type service struct {
	Config
	Dependencies

	mutex     sync.Mutex
	servo     *servo.Servo
	statuses  *pubsub.PubSub
	startedAt time.Time
	// last status read from the timer, served to pollers
	last Status
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if deps.Timer == nil {
		return nil, errors.Wrap(servo.ErrMissingDevice, "service requires a timer")
	}
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	s := &service{
		Config:       conf,
		Dependencies: deps,
		servo:        servo.New(deps.Logger.With().Uint8("channel", conf.ChannelNumber).Logger()),
		statuses:     pubsub.New(),
		startedAt:    time.Now(),
	}
	s.last = s.readStatus()
	return s, nil
}

// Run configures the timer, initializes and starts the servo, and keeps
// it running until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.Logger
	if err := s.Timer.Configure(ctx); err != nil {
		return errors.Wrap(err, "failed to configure timer")
	}

	s.mutex.Lock()
	err := s.initializeAndStart()
	status := s.statusLocked()
	s.mutex.Unlock()
	s.publish(status)
	if err != nil {
		var ae aerr.AggregateError
		ae.Add(err)
		ae.Add(s.Timer.Close(context.Background()))
		return ae.AsError()
	}
	log.Info().Str("status", status.Summary()).Msg("Servo running")

	// Wait until context closed
	<-ctx.Done()

	log.Info().Msg("Stopping servo")
	var ae aerr.AggregateError
	s.mutex.Lock()
	ae.Add(maskAny(s.servo.Stop()))
	status = s.statusLocked()
	s.mutex.Unlock()
	s.publish(status)
	ae.Add(maskAny(s.Timer.Close(context.Background())))
	return ae.AsError()
}

// initializeAndStart brings the servo in running state.
// Caller must hold the mutex.
func (s *service) initializeAndStart() error {
	if _, err := s.servo.Initialize(s.Config.Parameters(s.Timer)); err != nil {
		return errors.Wrap(err, "failed to initialize servo")
	}
	if err := s.servo.Start(); err != nil {
		return errors.Wrap(err, "failed to start servo")
	}
	if s.InitialPulseWidthUs > 0 {
		s.servo.Write(s.InitialPulseWidthUs)
	}
	return nil
}

// Status returns the status of the servo after its last change.
// It does not access the timer.
func (s *service) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	status := s.last
	status.Uptime = s.uptime()
	return status
}

// SetPulseWidth sets the pulse width (in microseconds) of a running servo.
func (s *service) SetPulseWidth(pulseWidthUs uint32) Status {
	setPulseWidthTotal.Inc()
	return s.update(func() error {
		s.servo.Write(pulseWidthUs)
		return nil
	})
}

// SetDutyCycle sets the pulse width (in percent of the period) of a running servo.
func (s *service) SetDutyCycle(percent float64) Status {
	setDutyCycleTotal.Inc()
	return s.update(func() error {
		s.servo.WriteDutyCycle(percent)
		return nil
	})
}

// SetFrequency reprograms the PWM frequency.
func (s *service) SetFrequency(hz uint32) (Status, error) {
	setFrequencyTotal.Inc()
	var err error
	status := s.update(func() error {
		err = s.servo.SetFrequency(hz)
		return err
	})
	return status, err
}

// Start the PWM output.
func (s *service) Start() (Status, error) {
	startTotal.Inc()
	var err error
	status := s.update(func() error {
		err = s.servo.Start()
		return err
	})
	return status, err
}

// Stop the PWM output.
func (s *service) Stop() (Status, error) {
	stopTotal.Inc()
	var err error
	status := s.update(func() error {
		err = s.servo.Stop()
		return err
	})
	return status, err
}

// Subscribe registers a callback that is called after every status change.
func (s *service) Subscribe(cb func(Status)) context.CancelFunc {
	s.statuses.Sub(cb)
	return func() {
		s.statuses.Leave(cb)
	}
}

// update calls the given function while holding the mutex and
// publishes the resulting status.
func (s *service) update(f func() error) Status {
	s.mutex.Lock()
	if err := f(); err != nil {
		s.Logger.Warn().Err(err).Msg("Servo request failed")
	}
	status := s.statusLocked()
	s.mutex.Unlock()
	s.publish(status)
	return status
}

// publish the given status to all subscribers & metrics.
func (s *service) publish(status Status) {
	stateGauge.Set(float64(status.State))
	pulseWidthGauge.Set(float64(status.PulseWidthUs))
	frequencyGauge.Set(float64(status.PWMFrequencyHz))
	s.statuses.Pub(status)
}

// statusLocked reads the current status from the servo and stores it
// as last status.
// Caller must hold the mutex.
func (s *service) statusLocked() Status {
	s.last = s.readStatus()
	return s.last
}

// readStatus builds the current status from the servo.
// Caller must hold the mutex.
func (s *service) readStatus() Status {
	p := s.servo.Parameters()
	if s.servo.State() == servo.StateUninitialized {
		p = s.Config.Parameters(s.Timer)
	}
	d := s.servo.DerivedConfiguration()
	return Status{
		State:            s.servo.State(),
		ClockFrequencyHz: p.ClockFrequencyHz,
		Channel:          p.ChannelNumber,
		PWMFrequencyHz:   p.PWMFrequencyHz,
		MinPulseWidthUs:  p.MinPulseWidthUs,
		MaxPulseWidthUs:  p.MaxPulseWidthUs,
		PrescaleDivider:  d.PrescaleDivider,
		AutoReloadValue:  d.AutoReloadValue,
		PeriodUs:         d.PeriodUs,
		ResolutionUs:     d.ResolutionUs,
		PulseWidthUs:     s.servo.Read(),
		DutyCycle:        s.servo.ReadDutyCycle(),
		Uptime:           s.uptime(),
	}
}

func (s *service) uptime() string {
	return time.Since(s.startedAt).Round(time.Second).String()
}
