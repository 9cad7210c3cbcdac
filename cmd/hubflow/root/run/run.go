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
	"context"

	"github.com/conduitio/hubflow/pkg/hubflow"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithFlags   = (*RunCommand)(nil)
	_ ecdysis.CommandWithExecute = (*RunCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*RunCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*RunCommand)(nil)
)

const EnvPrefix = "HUBFLOW"

type RunFlags struct {
	hubflow.Config
}

type RunCommand struct {
	flags RunFlags
	Cfg   hubflow.Config
}

func (c *RunCommand) Execute(_ context.Context) error {
	e := &hubflow.Entrypoint{}
	e.Serve(c.Cfg)
	return nil
}

func (c *RunCommand) Config() ecdysis.Config {
	return ecdysis.Config{
		EnvPrefix:     EnvPrefix,
		Parsed:        &c.Cfg,
		Path:          c.flags.ConfigFile.Path,
		DefaultValues: hubflow.DefaultConfig(),
	}
}

func (c *RunCommand) Usage() string { return "run" }

func (c *RunCommand) Flags() []ecdysis.Flag {
	flags := ecdysis.BuildFlags(&c.flags)

	c.Cfg = hubflow.DefaultConfig()
	flags.SetDefault("config.path", c.Cfg.ConfigFile.Path)
	flags.SetDefault("log.level", c.Cfg.Log.Level)
	flags.SetDefault("log.format", c.Cfg.Log.Format)
	flags.SetDefault("hub.type", c.Cfg.Hub.Type)
	flags.SetDefault("hub.kafka.servers", c.Cfg.Hub.Kafka.Servers)
	flags.SetDefault("hub.kafka.topic", c.Cfg.Hub.Kafka.Topic)
	flags.SetDefault("hub.kafka.client-id", c.Cfg.Hub.Kafka.ClientID)
	flags.SetDefault("hub.kafka.max-wait", c.Cfg.Hub.Kafka.MaxWait)
	flags.SetDefault("hub.simulator.devices", c.Cfg.Hub.Simulator.Devices)
	flags.SetDefault("hub.simulator.interval", c.Cfg.Hub.Simulator.Interval)
	flags.SetDefault("hub.simulator.seed", c.Cfg.Hub.Simulator.Seed)
	flags.SetDefault("source.partitions", c.Cfg.Source.Partitions)
	flags.SetDefault("source.from-offset", c.Cfg.Source.FromOffset)
	flags.SetDefault("source.from-time", c.Cfg.Source.FromTime)
	flags.SetDefault("source.save-position", c.Cfg.Source.SavePosition)
	flags.SetDefault("source.prefetch", c.Cfg.Source.Prefetch)
	flags.SetDefault("source.batch-size", c.Cfg.Source.BatchSize)
	flags.SetDefault("source.poll-interval", c.Cfg.Source.PollInterval)
	flags.SetDefault("checkpoints.type", c.Cfg.Checkpoints.Type)
	flags.SetDefault("checkpoints.consumer", c.Cfg.Checkpoints.Consumer)
	flags.SetDefault("checkpoints.every", c.Cfg.Checkpoints.Every)
	flags.SetDefault("checkpoints.badger.path", c.Cfg.Checkpoints.Badger.Path)
	flags.SetDefault("checkpoints.postgres.connection-string", c.Cfg.Checkpoints.Postgres.ConnectionString)
	flags.SetDefault("checkpoints.postgres.table", c.Cfg.Checkpoints.Postgres.Table)
	flags.SetDefault("checkpoints.sqlite.path", c.Cfg.Checkpoints.SQLite.Path)
	flags.SetDefault("checkpoints.sqlite.table", c.Cfg.Checkpoints.SQLite.Table)
	flags.SetDefault("pipeline.path", c.Cfg.Pipeline.Path)
	flags.SetDefault("pipeline.id", c.Cfg.Pipeline.ID)
	flags.SetDefault("pipeline.sink-failures.halt", c.Cfg.Pipeline.SinkFailures.Halt)
	flags.SetDefault("pipeline.sink-failures.window-size", c.Cfg.Pipeline.SinkFailures.WindowSize)
	flags.SetDefault("pipeline.sink-failures.window-threshold", c.Cfg.Pipeline.SinkFailures.WindowThreshold)
	flags.SetDefault("pipeline.error-recovery.min-delay", c.Cfg.Pipeline.ErrorRecovery.MinDelay)
	flags.SetDefault("pipeline.error-recovery.max-delay", c.Cfg.Pipeline.ErrorRecovery.MaxDelay)
	flags.SetDefault("pipeline.error-recovery.backoff-factor", c.Cfg.Pipeline.ErrorRecovery.BackoffFactor)
	flags.SetDefault("pipeline.error-recovery.max-retries", c.Cfg.Pipeline.ErrorRecovery.MaxRetries)
	flags.SetDefault("effects.kafka.servers", c.Cfg.Effects.Kafka.Servers)
	flags.SetDefault("effects.kafka.command-topic", c.Cfg.Effects.Kafka.CommandTopic)
	flags.SetDefault("metrics.address", c.Cfg.Metrics.Address)
	return flags
}

func (c *RunCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Run a hubflow pipeline",
		Long: `Starts reading telemetry from the configured hub and runs the pipeline selected
from the pipeline file. The pipeline runs until it is interrupted or halts. An
interrupt saves the checkpoints and exits with status 0, a second interrupt
exits immediately with status 2. A halted pipeline exits with status 1.`,
		Example: "hubflow run --pipeline.path ./pipelines/fan-control.yaml\n" +
			"hubflow run --hub.type kafka --hub.kafka.servers localhost:9092 --hub.kafka.topic telemetry",
	}
}
