// Copyright © 2022 Meroxa, Inc.
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

// Package kafka contains the effects delivering records to a Kafka topic.
package kafka

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/sink"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

var (
	ErrServersMissing = cerrors.New("servers missing")
	ErrTopicMissing   = cerrors.New("topic missing")
)

// DeviceIDHeader is the header containing the device ID of forwarded
// messages and commands.
const DeviceIDHeader = "deviceId"

type Config struct {
	Servers []string
	Topic   string
	// Acks is the number of acknowledgments required before a write is
	// considered successful.
	Acks kafka.RequiredAcks
	// DeliveryTimeout limits the time spent delivering a single message.
	DeliveryTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Acks:            kafka.RequireAll,
		DeliveryTimeout: 10 * time.Second,
	}
}

func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return ErrServersMissing
	}
	for i, s := range c.Servers {
		if strings.TrimSpace(s) == "" {
			return cerrors.Errorf("empty %d. server: %w", i, ErrServersMissing)
		}
	}
	if c.Topic == "" {
		return ErrTopicMissing
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer synchronously writes messages to a topic. It can forward messages
// and send commands to devices.
type Producer struct {
	writer messageWriter
	logger log.CtxLogger

	newID func() uuid.UUID
	now   func() time.Time
}

var (
	_ sink.Forwarder     = (*Producer)(nil)
	_ sink.CommandSender = (*Producer)(nil)
)

// NewProducer creates a new Kafka producer.
// The current implementation uses Segment's kafka-go client.
func NewProducer(cfg Config, logger log.CtxLogger) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid kafka config: %w", err)
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Servers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		WriteTimeout: cfg.DeliveryTimeout,
		RequiredAcks: cfg.Acks,
		MaxAttempts:  3,
	}
	return newProducer(writer, logger), nil
}

func newProducer(w messageWriter, logger log.CtxLogger) *Producer {
	return &Producer{
		writer: w,
		logger: logger.WithComponent("kafka.Producer"),
		newID:  uuid.New,
		now:    time.Now,
	}
}

// Forward writes the message body to the topic. The device ID is used as the
// key, properties are written as headers.
func (p *Producer) Forward(ctx context.Context, msg message.Message) error {
	headers := make([]kafka.Header, 0, len(msg.Properties)+1)
	headers = append(headers, kafka.Header{Key: DeviceIDHeader, Value: []byte(msg.DeviceID)})
	keys := make([]string, 0, len(msg.Properties))
	for k := range msg.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(msg.Properties[k])})
	}

	return p.write(ctx, kafka.Message{
		Key:     []byte(msg.DeviceID),
		Value:   msg.Body,
		Headers: headers,
		Time:    msg.Timestamp,
	})
}

type command struct {
	ID         string            `json:"id"`
	DeviceID   string            `json:"deviceId"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
	Time       time.Time         `json:"time"`
}

// Send writes a command addressed to the device to the topic.
func (p *Producer) Send(ctx context.Context, deviceID, name string, props map[string]string) error {
	cmd := command{
		ID:         p.newID().String(),
		DeviceID:   deviceID,
		Name:       name,
		Properties: props,
		Time:       p.now().UTC(),
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return cerrors.Errorf("could not marshal command: %w", err)
	}

	p.logger.Debug(ctx).
		Str(log.DeviceIDField, deviceID).
		Str(log.CommandNameField, name).
		Str("command_id", cmd.ID).
		Msg("sending command")

	return p.write(ctx, kafka.Message{
		Key:     []byte(deviceID),
		Value:   body,
		Headers: []kafka.Header{{Key: DeviceIDHeader, Value: []byte(deviceID)}},
		Time:    cmd.Time,
	})
}

func (p *Producer) write(ctx context.Context, msg kafka.Message) error {
	err := p.writer.WriteMessages(ctx, msg)
	if err != nil {
		return cerrors.Errorf("message not delivered: %w", err)
	}
	return nil
}

// Close this producer and the associated resources (e.g. connections to the
// broker).
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
