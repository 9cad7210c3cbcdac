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

package hubflow

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/hub/simulator"
	"github.com/rs/zerolog"
)

const (
	HubTypeKafka     = "kafka"
	HubTypeSimulator = "simulator"

	StoreTypeBadger   = "badger"
	StoreTypePostgres = "postgres"
	StoreTypeSQLite   = "sqlite"
	StoreTypeInMemory = "inmemory"
)

// Config holds all configurable values for hubflow.
type Config struct {
	ConfigFile struct {
		Path string `long:"config.path" usage:"global hubflow configuration file" default:"./hubflow.yaml"`
	} `mapstructure:"config"`

	Log struct {
		Level  string `long:"log.level" usage:"sets logging level; accepts debug, info, warn, error, trace"`
		Format string `long:"log.format" usage:"sets the format of the logging; accepts json, cli"`
	}

	Hub struct {
		Type  string `long:"hub.type" usage:"hub the telemetry is read from; accepts kafka,simulator"`
		Kafka struct {
			Servers  string        `long:"hub.kafka.servers" usage:"comma separated list of kafka bootstrap servers"`
			Topic    string        `long:"hub.kafka.topic" usage:"topic containing the device telemetry"`
			ClientID string        `long:"hub.kafka.client-id" usage:"client ID used when connecting to kafka" mapstructure:"client-id"`
			MaxWait  time.Duration `long:"hub.kafka.max-wait" usage:"maximum time a fetch waits for new messages" mapstructure:"max-wait"`
		}
		Simulator struct {
			Devices  string        `long:"hub.simulator.devices" usage:"comma separated list of simulated devices as [id:]schema, schemas are temperature,humidity"`
			Interval time.Duration `long:"hub.simulator.interval" usage:"time between two readings of a simulated device"`
			Seed     int64         `long:"hub.simulator.seed" usage:"seed of the simulated readings"`
		}
	}

	Source struct {
		Partitions   string        `long:"source.partitions" usage:"comma separated list of partitions to read, all partitions if empty"`
		FromOffset   string        `long:"source.from-offset" usage:"comma separated list of partition:offset pairs, messages are read from these offsets regardless of checkpoints" mapstructure:"from-offset"`
		FromTime     string        `long:"source.from-time" usage:"RFC 3339 timestamp or duration before now used as start position of partitions without a checkpoint" mapstructure:"from-time"`
		SavePosition bool          `long:"source.save-position" usage:"save checkpoints and resume from them" mapstructure:"save-position"`
		Prefetch     int           `long:"source.prefetch" usage:"maximum number of messages buffered per partition"`
		BatchSize    int           `long:"source.batch-size" usage:"maximum number of messages fetched at once" mapstructure:"batch-size"`
		PollInterval time.Duration `long:"source.poll-interval" usage:"time waited after a fetch returned no messages" mapstructure:"poll-interval"`
	}

	Checkpoints struct {
		Type     string `long:"checkpoints.type" usage:"checkpoint store type; accepts badger,postgres,sqlite,inmemory"`
		Consumer string `long:"checkpoints.consumer" usage:"name of the consumer owning the checkpoints"`
		Every    int    `long:"checkpoints.every" usage:"number of acknowledged messages per partition after which a checkpoint is saved"`
		Badger   struct {
			Path string `long:"checkpoints.badger.path" usage:"path to badger DB"`
		}
		Postgres struct {
			ConnectionString string `long:"checkpoints.postgres.connection-string" usage:"postgres connection string, may be a database URL or in PostgreSQL keyword/value format" mapstructure:"connection-string"`
			Table            string `long:"checkpoints.postgres.table" usage:"postgres table in which to store checkpoints (will be created if it does not exist)"`
		}
		SQLite struct {
			Path  string `long:"checkpoints.sqlite.path" usage:"path to the directory of the sqlite3 DB"`
			Table string `long:"checkpoints.sqlite.table" usage:"sqlite3 table in which to store checkpoints (will be created if it does not exist)"`
		}
	}

	Pipeline struct {
		Path string `long:"pipeline.path" usage:"path to the yaml pipeline file"`
		ID   string `long:"pipeline.id" usage:"ID of the pipeline to run, required if the file contains more than one pipeline"`

		SinkFailures struct {
			Halt            bool `long:"pipeline.sink-failures.halt" usage:"halt the pipeline when too many deliveries fail"`
			WindowSize      int  `long:"pipeline.sink-failures.window-size" usage:"number of last deliveries per partition taken into account" mapstructure:"window-size"`
			WindowThreshold int  `long:"pipeline.sink-failures.window-threshold" usage:"number of failed deliveries in the window that are tolerated" mapstructure:"window-threshold"`
		} `mapstructure:"sink-failures"`

		ErrorRecovery struct {
			MinDelay      time.Duration `long:"pipeline.error-recovery.min-delay" usage:"minimum delay before restart" mapstructure:"min-delay"`
			MaxDelay      time.Duration `long:"pipeline.error-recovery.max-delay" usage:"maximum delay before restart" mapstructure:"max-delay"`
			BackoffFactor int           `long:"pipeline.error-recovery.backoff-factor" usage:"backoff factor applied to the last delay" mapstructure:"backoff-factor"`
			MaxRetries    int           `long:"pipeline.error-recovery.max-retries" usage:"maximum number of restarts after a halt, 0 disables restarts" mapstructure:"max-retries"`
		} `mapstructure:"error-recovery"`
	}

	Effects struct {
		Kafka struct {
			Servers      string `long:"effects.kafka.servers" usage:"comma separated list of kafka servers used by forward and command effects, commands are only logged if empty"`
			CommandTopic string `long:"effects.kafka.command-topic" usage:"topic receiving device commands" mapstructure:"command-topic"`
		}
	}

	Metrics struct {
		Address string `long:"metrics.address" usage:"address for serving prometheus metrics, disabled if empty"`
	}

	// Output receives the lines written by display effects. Defaults to
	// stdout.
	Output io.Writer `mapstructure:"-"`
	// Store can be used to inject a checkpoint store. If set, Checkpoints.Type
	// is ignored.
	Store checkpoint.Store `mapstructure:"-"`
}

func DefaultConfig() Config {
	var cfg Config
	cfg.ConfigFile.Path = "./hubflow.yaml"
	cfg.Log.Level = "info"
	cfg.Log.Format = "cli"

	cfg.Hub.Type = HubTypeSimulator
	cfg.Hub.Kafka.ClientID = "hubflow"
	cfg.Hub.Kafka.MaxWait = 250 * time.Millisecond
	cfg.Hub.Simulator.Devices = "livingRoom:temperature,kitchen:temperature,bathroom:humidity"
	cfg.Hub.Simulator.Interval = time.Second

	cfg.Source.Prefetch = 32
	cfg.Source.BatchSize = 16
	cfg.Source.PollInterval = 500 * time.Millisecond

	cfg.Checkpoints.Type = StoreTypeBadger
	cfg.Checkpoints.Consumer = "hubflow"
	cfg.Checkpoints.Every = 1
	cfg.Checkpoints.Badger.Path = "hubflow.db"
	cfg.Checkpoints.Postgres.Table = "hubflow_checkpoints"
	cfg.Checkpoints.SQLite.Path = "."
	cfg.Checkpoints.SQLite.Table = "hubflow_checkpoints"

	cfg.Pipeline.Path = "./pipelines/temperature-alerts.yaml"
	cfg.Pipeline.SinkFailures.WindowSize = 10
	cfg.Pipeline.SinkFailures.WindowThreshold = 5
	cfg.Pipeline.ErrorRecovery.MinDelay = time.Second
	cfg.Pipeline.ErrorRecovery.MaxDelay = 10 * time.Minute
	cfg.Pipeline.ErrorRecovery.BackoffFactor = 2
	cfg.Pipeline.ErrorRecovery.MaxRetries = 0

	cfg.Effects.Kafka.CommandTopic = "hubflow-commands"

	cfg.Metrics.Address = ":9090"
	return cfg
}

func (c Config) Validate() error {
	if c.Log.Level == "" {
		return requiredConfigFieldErr("log.level")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return invalidConfigFieldErr("log.level")
	}
	if c.Log.Format == "" {
		return requiredConfigFieldErr("log.format")
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return invalidConfigFieldErr("log.format")
	}

	switch c.Hub.Type {
	case HubTypeKafka:
		if c.Hub.Kafka.Servers == "" {
			return requiredConfigFieldErr("hub.kafka.servers")
		}
		if c.Hub.Kafka.Topic == "" {
			return requiredConfigFieldErr("hub.kafka.topic")
		}
	case HubTypeSimulator:
		if c.Hub.Simulator.Devices == "" {
			return requiredConfigFieldErr("hub.simulator.devices")
		}
		if _, err := simulator.ParseDevices(c.Hub.Simulator.Devices); err != nil {
			return invalidConfigFieldErr("hub.simulator.devices")
		}
		if c.Hub.Simulator.Interval <= 0 {
			return invalidConfigFieldErr("hub.simulator.interval")
		}
	case "":
		return requiredConfigFieldErr("hub.type")
	default:
		return invalidConfigFieldErr("hub.type")
	}

	if _, err := c.partitions(); err != nil {
		return invalidConfigFieldErr("source.partitions")
	}
	if _, err := c.fromOffset(); err != nil {
		return invalidConfigFieldErr("source.from-offset")
	}
	if _, err := c.fromTime(time.Now()); err != nil {
		return invalidConfigFieldErr("source.from-time")
	}
	if c.Source.Prefetch < 1 {
		return invalidConfigFieldErr("source.prefetch")
	}
	if c.Source.BatchSize < 1 {
		return invalidConfigFieldErr("source.batch-size")
	}

	if c.Store == nil {
		if err := c.validateStore(); err != nil {
			return err
		}
	}
	if c.Effects.Kafka.Servers != "" && c.Effects.Kafka.CommandTopic == "" {
		return requiredConfigFieldErr("effects.kafka.command-topic")
	}
	if c.Checkpoints.Consumer == "" {
		return requiredConfigFieldErr("checkpoints.consumer")
	}
	if c.Checkpoints.Every < 1 {
		return invalidConfigFieldErr("checkpoints.every")
	}

	if c.Pipeline.Path == "" {
		return requiredConfigFieldErr("pipeline.path")
	}
	if _, err := os.Stat(c.Pipeline.Path); err != nil {
		return invalidConfigFieldErr("pipeline.path")
	}
	if c.Pipeline.SinkFailures.Halt {
		if c.Pipeline.SinkFailures.WindowSize < 1 {
			return invalidConfigFieldErr("pipeline.sink-failures.window-size")
		}
		if c.Pipeline.SinkFailures.WindowThreshold < 0 {
			return invalidConfigFieldErr("pipeline.sink-failures.window-threshold")
		}
	}
	if c.Pipeline.ErrorRecovery.MinDelay <= 0 {
		return invalidConfigFieldErr("pipeline.error-recovery.min-delay")
	}
	if c.Pipeline.ErrorRecovery.MaxDelay < c.Pipeline.ErrorRecovery.MinDelay {
		return invalidConfigFieldErr("pipeline.error-recovery.max-delay")
	}
	if c.Pipeline.ErrorRecovery.BackoffFactor < 1 {
		return invalidConfigFieldErr("pipeline.error-recovery.backoff-factor")
	}
	if c.Pipeline.ErrorRecovery.MaxRetries < 0 {
		return invalidConfigFieldErr("pipeline.error-recovery.max-retries")
	}

	return nil
}

func (c Config) validateStore() error {
	switch c.Checkpoints.Type {
	case StoreTypeBadger:
		if c.Checkpoints.Badger.Path == "" {
			return requiredConfigFieldErr("checkpoints.badger.path")
		}
	case StoreTypePostgres:
		if c.Checkpoints.Postgres.ConnectionString == "" {
			return requiredConfigFieldErr("checkpoints.postgres.connection-string")
		}
		if c.Checkpoints.Postgres.Table == "" {
			return requiredConfigFieldErr("checkpoints.postgres.table")
		}
	case StoreTypeSQLite:
		if c.Checkpoints.SQLite.Path == "" {
			return requiredConfigFieldErr("checkpoints.sqlite.path")
		}
		if c.Checkpoints.SQLite.Table == "" {
			return requiredConfigFieldErr("checkpoints.sqlite.table")
		}
	case StoreTypeInMemory:
		// all good
	case "":
		return requiredConfigFieldErr("checkpoints.type")
	default:
		return invalidConfigFieldErr("checkpoints.type")
	}
	return nil
}

// partitions parses the configured partitions.
func (c Config) partitions() ([]int, error) {
	if strings.TrimSpace(c.Source.Partitions) == "" {
		return nil, nil
	}
	var out []int
	for _, s := range strings.Split(c.Source.Partitions, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, cerrors.Errorf("invalid partition %q: %w", s, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// fromTime parses the configured start time, either an RFC 3339 timestamp or
// a duration subtracted from now. Empty means now.
// fromOffset parses pairs like "0:100,2:5" into start offsets by partition.
func (c Config) fromOffset() (map[int]int64, error) {
	if strings.TrimSpace(c.Source.FromOffset) == "" {
		return nil, nil
	}
	out := make(map[int]int64)
	for _, s := range strings.Split(c.Source.FromOffset, ",") {
		rawPartition, rawOffset, ok := strings.Cut(strings.TrimSpace(s), ":")
		if !ok {
			return nil, cerrors.Errorf("invalid start offset %q, expected partition:offset", s)
		}
		p, err := strconv.Atoi(strings.TrimSpace(rawPartition))
		if err != nil {
			return nil, cerrors.Errorf("invalid partition %q: %w", rawPartition, err)
		}
		off, err := strconv.ParseInt(strings.TrimSpace(rawOffset), 10, 64)
		if err != nil {
			return nil, cerrors.Errorf("invalid offset %q: %w", rawOffset, err)
		}
		if off < 0 {
			return nil, cerrors.Errorf("offset of partition %d must not be negative", p)
		}
		if _, dup := out[p]; dup {
			return nil, cerrors.Errorf("duplicate start offset for partition %d", p)
		}
		out[p] = off
	}
	return out, nil
}

func (c Config) fromTime(now time.Time) (time.Time, error) {
	if c.Source.FromTime == "" {
		return now, nil
	}
	if d, err := time.ParseDuration(c.Source.FromTime); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, c.Source.FromTime)
	if err != nil {
		return time.Time{}, cerrors.Errorf("%q is neither a duration nor an RFC 3339 timestamp", c.Source.FromTime)
	}
	return t, nil
}

func invalidConfigFieldErr(name string) error {
	return cerrors.Errorf("%q config value is invalid", name)
}

func requiredConfigFieldErr(name string) error {
	return cerrors.Errorf("%q config value is required", name)
}
