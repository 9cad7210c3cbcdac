// Copyright © 2024 Meroxa, Inc.
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

// Package kafka implements a hub reading the partitions of a Kafka topic.
// Each partition is read by its own reader without a consumer group, the
// read position is controlled by hubflow checkpoints.
package kafka

import (
	"context"
	"slices"
	"sync"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/segmentio/kafka-go"
)

// deviceIDHeaders are the message headers that can contain the device ID, in
// order of precedence. If none is present, the message key is used.
var deviceIDHeaders = []string{"iothub-connection-device-id", "deviceId"}

type Hub struct {
	cfg    Config
	dialer *kafka.Dialer
	logger log.CtxLogger

	m       sync.Mutex
	readers map[int]*partitionReader
}

var _ source.Hub = (*Hub)(nil)

type partitionReader struct {
	*kafka.Reader
	// next is the offset of the next message returned by the reader, -1 if
	// the reader was not positioned yet.
	next int64
}

func New(cfg Config, logger log.CtxLogger) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid kafka config: %w", err)
	}
	return &Hub{
		cfg: cfg,
		dialer: &kafka.Dialer{
			ClientID:  cfg.ClientID,
			Timeout:   cfg.DialTimeout,
			DualStack: true,
		},
		logger:  logger.WithComponent("kafka.Hub"),
		readers: make(map[int]*partitionReader),
	}, nil
}

func (h *Hub) ListPartitions(ctx context.Context) ([]int, error) {
	var errs []error
	for _, server := range h.cfg.Servers {
		conn, err := h.dialer.DialContext(ctx, "tcp", server)
		if err != nil {
			errs = append(errs, cerrors.Errorf("could not dial %s: %w", server, err))
			continue
		}
		partitions, err := conn.ReadPartitions(h.cfg.Topic)
		_ = conn.Close()
		if err != nil {
			return nil, cerrors.Errorf("could not read partitions of topic %q: %w", h.cfg.Topic, err)
		}

		out := make([]int, 0, len(partitions))
		for _, p := range partitions {
			out = append(out, p.ID)
		}
		slices.Sort(out)
		return out, nil
	}
	return nil, cerrors.Join(errs...)
}

// Fetch returns up to maxCount messages of the partition. It waits at most
// MaxWait for messages, if none arrive an empty batch is returned.
func (h *Hub) Fetch(ctx context.Context, partition int, start source.StartPosition, maxCount int) ([]message.Message, error) {
	r := h.reader(partition)
	if err := h.seek(ctx, r, start); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, h.cfg.MaxWait)
	defer cancel()

	var out []message.Message
	for len(out) < maxCount {
		km, err := r.FetchMessage(fetchCtx)
		if err != nil {
			if fetchCtx.Err() != nil && ctx.Err() == nil {
				break // max wait reached, return what we have
			}
			return nil, cerrors.Errorf("partition %d: could not fetch message: %w", partition, err)
		}
		out = append(out, toMessage(km))
		r.next = km.Offset + 1
	}
	return out, nil
}

// seek repositions the reader if start does not match the next offset the
// reader would return.
func (h *Hub) seek(ctx context.Context, r *partitionReader, start source.StartPosition) error {
	if off, ok := start.Offset(); ok {
		if off == r.next {
			return nil
		}
		if err := r.SetOffset(off); err != nil {
			return cerrors.Errorf("could not set offset %d: %w", off, err)
		}
		r.next = off
		return nil
	}

	t, _ := start.Time()
	if err := r.SetOffsetAt(ctx, t); err != nil {
		return cerrors.Errorf("could not set offset at %v: %w", t, err)
	}
	r.next = r.Offset()
	h.logger.Debug(ctx).
		Int(log.PartitionField, r.Config().Partition).
		Int64(log.OffsetField, r.next).
		Msg("reader positioned by time")
	return nil
}

func (h *Hub) reader(partition int) *partitionReader {
	h.m.Lock()
	defer h.m.Unlock()

	r, ok := h.readers[partition]
	if !ok {
		r = &partitionReader{
			Reader: kafka.NewReader(kafka.ReaderConfig{
				Brokers:   h.cfg.Servers,
				Topic:     h.cfg.Topic,
				Partition: partition,
				Dialer:    h.dialer,
				MinBytes:  1,
				MaxBytes:  10e6, // 10 MB
				MaxWait:   h.cfg.MaxWait,
			}),
			next: -1,
		}
		h.readers[partition] = r
	}
	return r
}

// Close closes all partition readers. The hub can be used again after it
// was closed, new readers are created on demand.
func (h *Hub) Close() error {
	h.m.Lock()
	defer h.m.Unlock()

	var errs []error
	for p, r := range h.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, cerrors.Errorf("partition %d: could not close reader: %w", p, err))
		}
		delete(h.readers, p)
	}
	return cerrors.Join(errs...)
}

func toMessage(km kafka.Message) message.Message {
	props := make(map[string]string, len(km.Headers))
	for _, hdr := range km.Headers {
		props[hdr.Key] = string(hdr.Value)
	}

	deviceID := string(km.Key)
	for _, k := range deviceIDHeaders {
		if v := props[k]; v != "" {
			deviceID = v
			break
		}
	}

	return message.Message{
		Partition:  km.Partition,
		Offset:     km.Offset,
		DeviceID:   deviceID,
		Timestamp:  km.Time,
		Body:       km.Value,
		SchemaTag:  message.SchemaTagFromProperties(props),
		Properties: props,
	}
}
