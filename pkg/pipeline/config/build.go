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

package config

import (
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/pipeline"
)

// Build creates the pipeline described by the configuration. Readings are
// selected by schema tag, parsed, and then filtered by device and conditions.
func (p Pipeline) Build() (*pipeline.Pipeline[pipeline.Reading], error) {
	var stages []pipeline.Stage
	if p.Schema != "" {
		stages = append(stages, pipeline.SchemaTag(p.Schema))
	}
	stages = append(stages, pipeline.ParseReading())
	if p.Device != "" {
		stages = append(stages, pipeline.DeviceIs(p.Device))
	}
	for i, c := range p.Conditions {
		cond, err := toCondition(c)
		if err != nil {
			return nil, cerrors.Errorf("condition %d: %w", i, err)
		}
		stages = append(stages, pipeline.Threshold(cond))
	}
	return pipeline.New[pipeline.Reading](stages...)
}

// AlertLabel returns the label used in alert lines.
func (p Pipeline) AlertLabel() string {
	if p.Effect.Display.Label != "" {
		return p.Effect.Display.Label
	}
	if p.Schema != "" {
		return p.Schema
	}
	return "value"
}
