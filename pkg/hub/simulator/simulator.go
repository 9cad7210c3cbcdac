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

// Package simulator implements a hub that generates sinusoidal sensor
// readings for a set of simulated devices. Every device is assigned its own
// partition. Readings are deterministic: the same configuration always
// produces the same messages at the same offsets.
package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	SchemaTemperature = "temperature"
	SchemaHumidity    = "humidity"
)

// deviceNamespace is used to derive stable IDs of devices configured without
// an ID.
var deviceNamespace = uuid.MustParse("5d8f5f3e-3a8e-4c1e-9a36-7c0c2f3c9b11")

// model describes the curve of a sensor type.
type model struct {
	mid   float64
	rng   float64
	shift int // phase shift in seconds
}

var models = map[string]model{
	// -10 .. 40
	SchemaTemperature: {mid: 15, rng: 25},
	// 40 .. 100
	SchemaHumidity: {mid: 70, rng: 30, shift: 180},
}

// Device is a simulated device.
type Device struct {
	ID     string
	Schema string
}

// Config configures the simulator.
type Config struct {
	Devices []Device
	// Interval is the time between two readings of a device.
	Interval time.Duration
	// Seed makes the generated peaks reproducible.
	Seed uint64
	// Start is the timestamp of the reading at offset 0. Defaults to the
	// current time.
	Start time.Time
}

// Hub is a source.Hub generating readings. Reading at offset k of a device
// is available once Start + k*Interval has passed.
type Hub struct {
	devices  []Device
	interval time.Duration
	seed     uint64
	start    time.Time

	now func() time.Time
}

var _ source.Hub = (*Hub)(nil)

func New(cfg Config) (*Hub, error) {
	if len(cfg.Devices) == 0 {
		return nil, cerrors.New("simulator requires at least one device")
	}
	if cfg.Interval <= 0 {
		return nil, cerrors.Errorf("simulator interval must be positive, got %v", cfg.Interval)
	}

	devices := make([]Device, len(cfg.Devices))
	for i, d := range cfg.Devices {
		if _, ok := models[d.Schema]; !ok {
			return nil, cerrors.Errorf("device %d: unknown schema %q", i, d.Schema)
		}
		if d.ID == "" {
			d.ID = uuid.NewSHA1(deviceNamespace, []byte(strconv.Itoa(i))).String()
		}
		devices[i] = d
	}

	start := cfg.Start
	if start.IsZero() {
		start = time.Now()
	}

	return &Hub{
		devices:  devices,
		interval: cfg.Interval,
		seed:     cfg.Seed,
		start:    start.UTC().Truncate(time.Millisecond),
		now:      time.Now,
	}, nil
}

// ParseDevices parses a comma separated list of devices in the form
// [id:]schema, e.g. "livingRoom:temperature,humidity".
func ParseDevices(s string) ([]Device, error) {
	var out []Device
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var d Device
		if id, schema, ok := strings.Cut(part, ":"); ok {
			d = Device{ID: strings.TrimSpace(id), Schema: strings.TrimSpace(schema)}
		} else {
			d = Device{Schema: part}
		}
		if _, ok := models[d.Schema]; !ok {
			return nil, cerrors.Errorf("device %q: unknown schema %q", part, d.Schema)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, cerrors.New("no devices configured")
	}
	return out, nil
}

// Devices returns the simulated devices, the index is the partition ID.
func (h *Hub) Devices() []Device {
	return append([]Device(nil), h.devices...)
}

func (h *Hub) ListPartitions(context.Context) ([]int, error) {
	out := make([]int, len(h.devices))
	for i := range out {
		out[i] = i
	}
	return out, nil
}

func (h *Hub) Fetch(_ context.Context, partition int, start source.StartPosition, maxCount int) ([]message.Message, error) {
	if partition < 0 || partition >= len(h.devices) {
		return nil, cerrors.Errorf("partition %d: %w", partition, source.ErrUnknownPartition)
	}

	from, ok := start.Offset()
	if !ok {
		t, _ := start.Time()
		from = h.offsetAt(t)
	}
	// the reading at offset k exists once its timestamp has passed
	available := h.offsetAt(h.now().Add(time.Nanosecond))

	var out []message.Message
	for off := from; off < available && len(out) < maxCount; off++ {
		msg, err := h.reading(partition, off)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Close does nothing, readings are generated on demand.
func (h *Hub) Close() error {
	return nil
}

// offsetAt returns the offset of the first reading at or after t.
func (h *Hub) offsetAt(t time.Time) int64 {
	d := t.Sub(h.start)
	if d <= 0 {
		return 0
	}
	n := int64(d / h.interval)
	if d%h.interval != 0 {
		n++
	}
	return n
}

func (h *Hub) reading(partition int, offset int64) (message.Message, error) {
	d := h.devices[partition]
	ts := h.start.Add(time.Duration(offset) * h.interval)

	body, err := json.Marshal(struct {
		Value float64 `json:"value"`
		Time  string  `json:"time"`
	}{
		Value: h.value(partition, d.Schema, ts),
		Time:  ts.Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return message.Message{}, cerrors.Errorf("could not encode reading: %w", err)
	}

	return message.Message{
		Partition: partition,
		Offset:    offset,
		DeviceID:  d.ID,
		Timestamp: ts,
		Body:      body,
		SchemaTag: d.Schema,
		Properties: map[string]string{
			message.PropertyContentType:   "json",
			message.PropertyMessageSchema: d.Schema,
		},
	}, nil
}

// value returns the reading of the device at ts. The curve is a sine wave
// with a period of 6 minutes whose amplitude changes every half period, when
// the sine crosses zero.
func (h *Hub) value(partition int, schema string, ts time.Time) float64 {
	m := models[schema]
	total := ts.Hour()*3600 + ts.Minute()*60 + ts.Second() + m.shift
	sec := total % 360
	// the amplitude is fixed per half period
	halfPeriod := uint64(ts.Unix()+int64(m.shift)) / 180

	r := rand.New(rand.NewPCG(h.seed^uint64(partition), halfPeriod)) //nolint:gosec // not used for security
	peak := m.rng * r.Float64()

	rad := float64(sec) * math.Pi / 180
	v := m.mid + math.Sin(rad)*peak
	return math.Floor(v*10) / 10
}
