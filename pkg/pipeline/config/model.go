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

// Package config parses declarative pipeline files.
package config

import (
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

const LatestVersion = "1.0"

// Effect types.
const (
	EffectDisplay = "display"
	EffectForward = "forward"
	EffectCommand = "command"
)

// Display formats.
const (
	FormatAlert = "alert"
	FormatRaw   = "raw"
)

var (
	ErrMandatoryField = cerrors.New("mandatory field not specified")
	ErrInvalidField   = cerrors.New("invalid field value")
	ErrDuplicateID    = cerrors.New("duplicate pipeline id")
)

// Configuration is the content of a pipeline file.
type Configuration struct {
	Version   string     `yaml:"version"`
	Pipelines []Pipeline `yaml:"pipelines"`
}

// Pipeline describes which readings are selected and what happens with them.
type Pipeline struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	// Schema is the schema tag of the messages to select, e.g. temperature.
	Schema string `yaml:"schema"`
	// Device optionally restricts the pipeline to a single device.
	Device     string      `yaml:"device"`
	Conditions []Condition `yaml:"conditions"`
	Effect     Effect      `yaml:"effect"`
}

// Condition is a threshold condition, all conditions need to match.
type Condition struct {
	Op    string   `yaml:"op"`
	Value *float64 `yaml:"value"`
	Min   *float64 `yaml:"min"`
	Max   *float64 `yaml:"max"`
}

// Effect describes the side effect executed for every selected reading.
type Effect struct {
	Type    string        `yaml:"type"`
	Display DisplayEffect `yaml:"display"`
	Forward ForwardEffect `yaml:"forward"`
	Command CommandEffect `yaml:"command"`
}

type DisplayEffect struct {
	// Format is either alert or raw.
	Format string `yaml:"format"`
	// Low is the value at or below which an alert reports a too low reading.
	Low float64 `yaml:"low"`
	// Label names the measured quantity in alerts, defaults to the schema.
	Label string `yaml:"label"`
}

type ForwardEffect struct {
	Topic string `yaml:"topic"`
}

type CommandEffect struct {
	Name       string            `yaml:"name"`
	Properties map[string]string `yaml:"properties"`
}
