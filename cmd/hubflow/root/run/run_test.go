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

package run

import (
	"testing"

	"github.com/conduitio/ecdysis"
	"github.com/matryer/is"
)

func TestRunCommandFlags(t *testing.T) {
	is := is.New(t)

	expectedFlags := []struct {
		longName string
		usage    string
	}{
		{longName: "config.path", usage: "global hubflow configuration file"},
		{longName: "log.level", usage: "sets logging level; accepts debug, info, warn, error, trace"},
		{longName: "log.format", usage: "sets the format of the logging; accepts json, cli"},
		{longName: "hub.type", usage: "hub the telemetry is read from; accepts kafka,simulator"},
		{longName: "hub.kafka.servers", usage: "comma separated list of kafka bootstrap servers"},
		{longName: "hub.kafka.topic", usage: "topic containing the device telemetry"},
		{longName: "hub.kafka.client-id", usage: "client ID used when connecting to kafka"},
		{longName: "hub.kafka.max-wait", usage: "maximum time a fetch waits for new messages"},
		{longName: "hub.simulator.devices", usage: "comma separated list of simulated devices as [id:]schema, schemas are temperature,humidity"},
		{longName: "hub.simulator.interval", usage: "time between two readings of a simulated device"},
		{longName: "hub.simulator.seed", usage: "seed of the simulated readings"},
		{longName: "source.partitions", usage: "comma separated list of partitions to read, all partitions if empty"},
		{longName: "source.from-offset", usage: "comma separated list of partition:offset pairs, messages are read from these offsets regardless of checkpoints"},
		{longName: "source.from-time", usage: "RFC 3339 timestamp or duration before now used as start position of partitions without a checkpoint"},
		{longName: "source.save-position", usage: "save checkpoints and resume from them"},
		{longName: "source.prefetch", usage: "maximum number of messages buffered per partition"},
		{longName: "source.batch-size", usage: "maximum number of messages fetched at once"},
		{longName: "source.poll-interval", usage: "time waited after a fetch returned no messages"},
		{longName: "checkpoints.type", usage: "checkpoint store type; accepts badger,postgres,sqlite,inmemory"},
		{longName: "checkpoints.consumer", usage: "name of the consumer owning the checkpoints"},
		{longName: "checkpoints.every", usage: "number of acknowledged messages per partition after which a checkpoint is saved"},
		{longName: "checkpoints.badger.path", usage: "path to badger DB"},
		{longName: "checkpoints.postgres.connection-string", usage: "postgres connection string, may be a database URL or in PostgreSQL keyword/value format"},
		{longName: "checkpoints.postgres.table", usage: "postgres table in which to store checkpoints (will be created if it does not exist)"},
		{longName: "checkpoints.sqlite.path", usage: "path to the directory of the sqlite3 DB"},
		{longName: "checkpoints.sqlite.table", usage: "sqlite3 table in which to store checkpoints (will be created if it does not exist)"},
		{longName: "pipeline.path", usage: "path to the yaml pipeline file"},
		{longName: "pipeline.id", usage: "ID of the pipeline to run, required if the file contains more than one pipeline"},
		{longName: "pipeline.sink-failures.halt", usage: "halt the pipeline when too many deliveries fail"},
		{longName: "pipeline.sink-failures.window-size", usage: "number of last deliveries per partition taken into account"},
		{longName: "pipeline.sink-failures.window-threshold", usage: "number of failed deliveries in the window that are tolerated"},
		{longName: "pipeline.error-recovery.min-delay", usage: "minimum delay before restart"},
		{longName: "pipeline.error-recovery.max-delay", usage: "maximum delay before restart"},
		{longName: "pipeline.error-recovery.backoff-factor", usage: "backoff factor applied to the last delay"},
		{longName: "pipeline.error-recovery.max-retries", usage: "maximum number of restarts after a halt, 0 disables restarts"},
		{longName: "effects.kafka.servers", usage: "comma separated list of kafka servers used by forward and command effects, commands are only logged if empty"},
		{longName: "effects.kafka.command-topic", usage: "topic receiving device commands"},
		{longName: "metrics.address", usage: "address for serving prometheus metrics, disabled if empty"},
	}

	e := ecdysis.New()
	c := e.MustBuildCobraCommand(&RunCommand{})

	cmdFlags := c.Flags()
	for _, f := range expectedFlags {
		cf := cmdFlags.Lookup(f.longName)
		is.True(cf != nil)
		is.Equal(f.longName, cf.Name)
		is.Equal(cf.Usage, f.usage)
	}
}

func TestRunCommandConfig(t *testing.T) {
	is := is.New(t)

	c := &RunCommand{}
	_ = c.Flags()
	c.flags.ConfigFile.Path = "./testdata/hubflow.yaml"

	cfg := c.Config()
	is.Equal(cfg.EnvPrefix, "HUBFLOW")
	is.Equal(cfg.Path, "./testdata/hubflow.yaml")
	is.Equal(cfg.Parsed, &c.Cfg)
	is.Equal(c.Cfg.Checkpoints.Type, "badger")
}
