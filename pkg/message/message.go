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

// Package message defines the telemetry message read from a partitioned hub.
package message

import (
	"time"
)

// Property keys devices attach to their messages.
const (
	PropertyContentType   = "$$contentType"
	PropertyMessageSchema = "$$MessageSchema"
)

// schemaTagKeys lists the keys devices have used to describe the payload
// schema, in order of precedence. They all carry the same logical schema tag.
var schemaTagKeys = []string{
	PropertyMessageSchema,
	"messageSchema",
	"messageType",
	"model",
}

// Message is a single telemetry event read from a partition. A message is
// created by the source and must not be changed afterwards.
type Message struct {
	// Partition is the ID of the partition the message was read from.
	Partition int
	// Offset is the position of the message in its partition. Offsets are
	// strictly increasing within a partition.
	Offset int64
	// DeviceID identifies the device that produced the message.
	DeviceID string
	// Timestamp is the time the hub enqueued the message.
	Timestamp time.Time
	// Body is the raw payload.
	Body []byte
	// SchemaTag describes the payload schema (e.g. "temperature").
	SchemaTag string
	// Properties are application properties attached by the device.
	Properties map[string]string
}

// SchemaTagFromProperties returns the schema tag found in the properties, or
// an empty string if none of the known keys is present.
func SchemaTagFromProperties(props map[string]string) string {
	for _, k := range schemaTagKeys {
		if v, ok := props[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Body != nil {
		out.Body = append([]byte(nil), m.Body...)
	}
	if m.Properties != nil {
		out.Properties = make(map[string]string, len(m.Properties))
		for k, v := range m.Properties {
			out.Properties[k] = v
		}
	}
	return out
}
