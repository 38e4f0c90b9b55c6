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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/ServoTimer/pkg/logging"
	"github.com/binkynet/ServoTimer/pkg/server"
	"github.com/binkynet/ServoTimer/pkg/service"
	"github.com/binkynet/ServoTimer/pkg/service/devices"
	"github.com/binkynet/ServoTimer/pkg/ui"
)

const (
	projectName        = "BinkyNet Servo Timer"
	defaultHTTPPort    = 7130
	defaultSSHPort     = 7132
	defaultLogLines    = 100
	defaultClockHz     = 72000000
	defaultFrequencyHz = 50
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var logFile string
	var logTopic string
	var serverCfg server.Config
	var timerCfg devices.TimerConfig
	var timerType string
	var serviceCfg service.Config
	var channel uint
	var sshHostKeyPath string

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVar(&logFile, "log-file", "", "Append log output to this file")
	pflag.StringVar(&logTopic, "log-topic", "", "Publish log output to this MQTT topic (requires --mqtt-broker)")
	pflag.StringVar(&serverCfg.Host, "host", "0.0.0.0", "Host address the servers will listen on")
	pflag.IntVar(&serverCfg.HTTPPort, "http-port", defaultHTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&serverCfg.SSHPort, "ssh-port", defaultSSHPort, "Port the SSH console will listen on (0 = disabled)")
	pflag.StringVar(&sshHostKeyPath, "ssh-host-key", ".ssh/id_ed25519", "Path of the SSH host key")
	pflag.StringVarP(&timerType, "timer", "t", string(devices.TimerTypeVirtual), "Type of timer to use (virtual|mqtt)")
	pflag.StringVar(&timerCfg.Name, "timer-name", "tim1", "Name of the timer")
	pflag.StringVar(&timerCfg.MQTTBrokerAddress, "mqtt-broker", "", "Address (host:port) of the MQTT broker")
	pflag.StringVar(&timerCfg.MQTTTopicPrefix, "mqtt-topic", "servotimer/tim1/", "Topic prefix of the MQTT timer")
	pflag.StringVar(&timerCfg.MQTTClientID, "mqtt-client-id", "", "Client ID used to connect to the MQTT broker")
	pflag.Uint32Var(&serviceCfg.ClockFrequencyHz, "clock", defaultClockHz, "Frequency (Hz) of the clock that feeds the timer")
	pflag.UintVar(&channel, "channel", 1, "Timer channel (1..4)")
	pflag.Uint32Var(&serviceCfg.PWMFrequencyHz, "frequency", defaultFrequencyHz, "PWM frequency in Hz (50|100|200|400)")
	pflag.Uint32Var(&serviceCfg.MinPulseWidthUs, "min-pulse", 0, "Minimum pulse width in microseconds (0 = disabled)")
	pflag.Uint32Var(&serviceCfg.MaxPulseWidthUs, "max-pulse", 0, "Maximum pulse width in microseconds (0 = disabled)")
	pflag.Uint32Var(&serviceCfg.InitialPulseWidthUs, "initial-pulse", 0, "Pulse width in microseconds written after start (0 = none)")
	pflag.Parse()

	// Prepare logging
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ring := logging.NewRingWriter(defaultLogLines)
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr},
		zerolog.ConsoleWriter{Out: ring, NoColor: true},
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			Exitf("Failed to open log file: %v\n", err)
		}
		defer f.Close()
		writers = append(writers, f)
	}
	if logTopic != "" {
		if timerCfg.MQTTBrokerAddress == "" {
			Exitf("--log-topic requires --mqtt-broker\n")
		}
		publisher, err := logging.NewMQTTPublisher(timerCfg.MQTTBrokerAddress, "servotimer-log-"+timerCfg.Name)
		if err != nil {
			Exitf("Failed to connect log publisher: %v\n", err)
		}
		writers = append(writers, logging.NewMQTTWriter(ctx, logTopic, publisher))
	}
	// Console output on stderr & ring, JSON lines to file & MQTT
	logger := zerolog.New(logging.NewMultiWriter(writers...)).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	// Prepare timer & service
	if channel > 255 {
		Exitf("Invalid channel %d\n", channel)
	}
	serviceCfg.ChannelNumber = uint8(channel)
	timerCfg.Type = devices.TimerType(timerType)
	timer, err := devices.NewTimer(timerCfg, logger)
	if err != nil {
		Exitf("Failed to create timer: %v\n", err)
	}
	svc, err := service.NewService(serviceCfg, service.Dependencies{
		Logger: logger,
		Timer:  timer,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	serverCfg.SSHHostKeyPath = sshHostKeyPath
	srv, err := server.New(serverCfg, logger, ui.SSHHandler{API: svc, Logs: ring}, svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return maskAny(svc.Run(gctx)) })
	g.Go(func() error { return maskAny(srv.Run(gctx)) })
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
