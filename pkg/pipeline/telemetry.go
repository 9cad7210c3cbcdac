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

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/goccy/go-json"
)

// Reading is a single sensor value reported by a device.
type Reading struct {
	Value    float64
	Time     time.Time
	DeviceID string
}

// SchemaTag returns a stage that keeps messages with the schema tag.
func SchemaTag(tag string) Stage {
	return Filter("schema-tag", func(msg message.Message) bool {
		return msg.SchemaTag == tag
	})
}

// ParseJSON returns a stage that decodes the message body into T. Bodies
// that are not valid JSON fail with ErrParse.
func ParseJSON[T any]() Stage {
	return Map("parse-json", func(msg message.Message, _ message.Message) (T, error) {
		var v T
		if err := json.Unmarshal(msg.Body, &v); err != nil {
			return v, cerrors.Errorf("offset %d: %v: %w", msg.Offset, err, ErrParse)
		}
		return v, nil
	})
}

// ParseReading returns a stage that decodes a body like
// {"value":21.5,"time":"2024-06-01T12:00:00.000Z"} into a Reading. The value
// is required. If the time is missing the message timestamp is used.
func ParseReading() Stage {
	return Map("parse-reading", func(msg message.Message, _ message.Message) (Reading, error) {
		var body struct {
			Value *float64  `json:"value"`
			Time  time.Time `json:"time"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return Reading{}, cerrors.Errorf("offset %d: %v: %w", msg.Offset, err, ErrParse)
		}
		if body.Value == nil {
			return Reading{}, cerrors.Errorf("offset %d: missing value: %w", msg.Offset, ErrParse)
		}
		r := Reading{
			Value:    *body.Value,
			Time:     body.Time,
			DeviceID: msg.DeviceID,
		}
		if r.Time.IsZero() {
			r.Time = msg.Timestamp
		}
		return r, nil
	})
}

// Op is a comparison operator of a threshold condition.
type Op string

const (
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpEqual          Op = "=="
	OpNotEqual       Op = "!="
	// OpOutside matches values below Min or above Max.
	OpOutside Op = "outside"
)

// ParseOp returns the operator matching s.
func ParseOp(s string) (Op, error) {
	op := Op(strings.TrimSpace(strings.ToLower(s)))
	switch op {
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual, OpEqual, OpNotEqual, OpOutside:
		return op, nil
	}
	return "", cerrors.Errorf("unknown operator %q", s)
}

// Condition compares a reading value with a threshold. Value is used by all
// operators except OpOutside, which uses Min and Max.
type Condition struct {
	Op    Op
	Value float64
	Min   float64
	Max   float64
}

func (c Condition) Validate() error {
	if _, err := ParseOp(string(c.Op)); err != nil {
		return err
	}
	if c.Op == OpOutside && c.Min > c.Max {
		return cerrors.Errorf("min (%v) must not be greater than max (%v)", c.Min, c.Max)
	}
	return nil
}

// Match returns true if v satisfies the condition.
func (c Condition) Match(v float64) bool {
	switch c.Op {
	case OpGreater:
		return v > c.Value
	case OpGreaterOrEqual:
		return v >= c.Value
	case OpLess:
		return v < c.Value
	case OpLessOrEqual:
		return v <= c.Value
	case OpEqual:
		return v == c.Value
	case OpNotEqual:
		return v != c.Value
	case OpOutside:
		return v < c.Min || v > c.Max
	}
	return false
}

func (c Condition) String() string {
	if c.Op == OpOutside {
		return fmt.Sprintf("outside [%v, %v]", c.Min, c.Max)
	}
	return fmt.Sprintf("%s %v", c.Op, c.Value)
}

// Threshold returns a stage that keeps readings matching the condition.
func Threshold(c Condition) Stage {
	return Filter("threshold "+c.String(), func(r Reading) bool {
		return c.Match(r.Value)
	})
}

// DeviceIs returns a stage that keeps readings of the device. Device IDs are
// compared case-insensitively.
func DeviceIs(id string) Stage {
	return Filter("device "+id, func(r Reading) bool {
		return strings.EqualFold(r.DeviceID, id)
	})
}
