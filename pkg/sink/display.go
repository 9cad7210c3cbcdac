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

package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/pipeline"
	"github.com/goccy/go-json"
)

// Writer displays lines of text.
type Writer interface {
	Write(line string) error
}

type ioWriter struct {
	m sync.Mutex
	w io.Writer
}

// NewWriter returns a Writer that writes every line followed by a newline to
// w.
func NewWriter(w io.Writer) Writer {
	return &ioWriter{w: w}
}

func (w *ioWriter) Write(line string) error {
	w.m.Lock()
	defer w.m.Unlock()
	_, err := io.WriteString(w.w, line+"\n")
	return err
}

// DisplayFormat controls how a reading is displayed.
type DisplayFormat string

const (
	// DisplayAlert displays a line like "Device: x: temperature too HIGH: 23.5".
	DisplayAlert DisplayFormat = "alert"
	// DisplayRaw displays the reading as a JSON line.
	DisplayRaw DisplayFormat = "raw"
)

// Display is an effect that writes readings to a Writer.
type Display struct {
	writer Writer
	format DisplayFormat
	// label is the name of the measured quantity used in alerts.
	label string
	// low is the value at or below which an alert reports a too low reading.
	low float64
}

func NewDisplay(w Writer, format DisplayFormat, label string, low float64) *Display {
	if format == "" {
		format = DisplayAlert
	}
	return &Display{
		writer: w,
		format: format,
		label:  label,
		low:    low,
	}
}

func (d *Display) Type() string { return "display" }

func (d *Display) Apply(_ context.Context, rec pipeline.Record[pipeline.Reading]) error {
	line, err := d.line(rec.Payload)
	if err != nil {
		return err
	}
	if err := d.writer.Write(line); err != nil {
		return cerrors.Errorf("could not write line: %w", err)
	}
	return nil
}

func (d *Display) line(r pipeline.Reading) (string, error) {
	switch d.format {
	case DisplayAlert:
		level := "HIGH"
		if r.Value <= d.low {
			level = "LOW"
		}
		return fmt.Sprintf("Device: %s: %s too %s: %v", r.DeviceID, d.label, level, r.Value), nil
	case DisplayRaw:
		b, err := json.Marshal(struct {
			DeviceID string  `json:"deviceId"`
			Value    float64 `json:"value"`
			Time     string  `json:"time"`
		}{
			DeviceID: r.DeviceID,
			Value:    r.Value,
			Time:     r.Time.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return "", cerrors.Errorf("could not marshal reading: %w", err)
		}
		return string(b), nil
	default:
		return "", cerrors.Errorf("unknown display format %q", d.format)
	}
}
