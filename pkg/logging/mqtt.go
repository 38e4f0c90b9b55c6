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

package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttLogger struct {
	queue     chan []byte
	topic     string
	publisher Publisher
}

const (
	mqttQueueSize      = 512
	mqttPublishTimeout = time.Millisecond * 500
)

// NewMQTTWriter creates a new MQTT output for logs, sending every log
// line to the given topic.
// The MQTT sender is closed when the given context is canceled.
func NewMQTTWriter(ctx context.Context, topic string, publisher Publisher) io.Writer {
	l := &mqttLogger{
		queue:     make(chan []byte, mqttQueueSize),
		topic:     topic,
		publisher: publisher,
	}
	go l.run(ctx)
	return l
}

func (l *mqttLogger) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	// Writers may reuse p after Write returns
	msg := append([]byte(nil), p...)
	for attempt := 0; attempt < 10; attempt++ {
		select {
		case l.queue <- msg:
			return len(p), nil
		default:
			// Queue full; Take 1 out and try again
			select {
			case <-l.queue:
				// Continue
			default:
				// Also continue
			}
		}
	}
	// Ignore errors
	return len(p), nil
}

type logMsg struct {
	Message string `json:"message"`
}

func (l *mqttLogger) run(ctx context.Context) {
	for {
		select {
		case msg := <-l.queue:
			encoded, err := json.Marshal(logMsg{Message: string(msg)})
			if err == nil {
				// Ignore errors, there is no place to log them
				l.publisher.Publish(l.topic, encoded)
			}
		case <-ctx.Done():
			return
		}
	}
}

type mqttPublisher struct {
	client mqttapi.Client
}

// NewMQTTPublisher connects to the given MQTT broker and returns
// a Publisher for it.
func NewMQTTPublisher(brokerAddress, clientID string) (Publisher, error) {
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + brokerAddress).
		SetClientID(clientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)
	client := mqttapi.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt: %w", token.Error())
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("failed to publish to '%s' in time", topic)
	}
	return token.Error()
}
