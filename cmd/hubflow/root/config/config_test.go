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

package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/conduitio/hubflow/cmd/hubflow/root/run"
	"github.com/conduitio/ecdysis"
	"github.com/matryer/is"
)

func TestPrintStructOutput(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer

	e := ecdysis.New()
	cmd := e.MustBuildCobraCommand(&ConfigCommand{RunCmd: &run.RunCommand{}})
	cmd.SetArgs([]string{
		"--hub.type", "kafka",
		"--hub.kafka.servers", "localhost:9092",
		"--checkpoints.every", "8",
		"--source.from-time", "24h",
		"--source.save-position",
		"--pipeline.sink-failures.halt",
	})
	cmd.SetOut(&buf)

	err := cmd.Execute()
	is.NoErr(err)

	output := buf.String()

	expectedLines := []string{
		"log.level: info",
		"log.format: cli",
		"hub.type: kafka",
		"hub.kafka.servers: localhost:9092",
		"hub.kafka.client-id: hubflow",
		"source.from-time: 24h",
		"source.save-position: true",
		"checkpoints.type: badger",
		"checkpoints.every: 8",
		"checkpoints.badger.path: hubflow.db",
		"pipeline.sink-failures.halt: true",
		"pipeline.error-recovery.min-delay: 1s",
		"pipeline.error-recovery.max-delay: 10m0s",
		"pipeline.error-recovery.max-retries: 0",
		"effects.kafka.command-topic: hubflow-commands",
	}

	for _, line := range expectedLines {
		if !strings.Contains(output, line) {
			t.Errorf("output does not contain expected line: %q", line)
		}
	}
	is.True(!strings.Contains(output, "hub.kafka.topic:")) // empty values are skipped
}
