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
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/checkpoint/badger"
	"github.com/conduitio/hubflow/pkg/checkpoint/inmemory"
	"github.com/conduitio/hubflow/pkg/checkpoint/postgres"
	"github.com/conduitio/hubflow/pkg/checkpoint/sqlite"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/ctxutil"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/foundation/metrics"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/prometheus"
	hubkafka "github.com/conduitio/hubflow/pkg/hub/kafka"
	"github.com/conduitio/hubflow/pkg/hub/simulator"
	"github.com/conduitio/hubflow/pkg/lifecycle"
	"github.com/conduitio/hubflow/pkg/pipeline"
	pipelineconfig "github.com/conduitio/hubflow/pkg/pipeline/config"
	"github.com/conduitio/hubflow/pkg/sink"
	sinkkafka "github.com/conduitio/hubflow/pkg/sink/kafka"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/conduitio/hubflow/pkg/supervision"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"
)

const (
	exitTimeout = 10 * time.Second
)

// Runtime sets up all components for running and monitoring a hubflow
// pipeline.
type Runtime struct {
	Config Config

	Store        checkpoint.Store
	Checkpointer *checkpoint.Checkpointer
	Hub          source.Hub
	Pipeline     pipelineconfig.Pipeline
	Service      *lifecycle.Service[pipeline.Reading]
	// Ready will be closed when Runtime has successfully started
	Ready chan struct{}
	// MetricsAddr is the address the metrics server listens on, it is set
	// before Ready is closed.
	MetricsAddr net.Addr

	closers     []io.Closer
	serviceDone chan struct{}
	logger      log.CtxLogger
}

// NewRuntime sets up a Runtime instance and primes it for start.
func NewRuntime(cfg Config) (_ *Runtime, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	r := &Runtime{
		Config:      cfg,
		Ready:       make(chan struct{}),
		serviceDone: make(chan struct{}),
		logger:      logger,
	}
	defer func() {
		if err != nil {
			closeErr := r.close()
			err = cerrors.LogOrReplace(err, closeErr, func() {
				logger.Err(ctx, closeErr).Msg("could not release resources of partially initialized runtime")
			})
		}
	}()

	r.Store = cfg.Store
	if r.Store == nil {
		r.Store, err = NewStore(ctx, cfg, logger)
		if err != nil {
			return nil, cerrors.Errorf("failed to create a checkpoint store: %w", err)
		}
		r.closers = append(r.closers, r.Store)
	}
	r.Checkpointer = checkpoint.NewCheckpointer(r.Store, logger, checkpoint.DefaultRetryConfig())

	configurePrometheus()
	measure.HubflowInfo.WithValues(Version(true)).Inc()

	r.Hub, err = newHub(cfg, logger)
	if err != nil {
		return nil, cerrors.Errorf("failed to create hub: %w", err)
	}
	r.closers = append(r.closers, r.Hub)

	pipelines, err := pipelineconfig.NewParser(logger).ParseFile(ctx, cfg.Pipeline.Path)
	if err != nil {
		return nil, cerrors.Errorf("failed to parse pipeline file: %w", err)
	}
	r.Pipeline, err = pipelineconfig.Select(pipelines, cfg.Pipeline.ID)
	if err != nil {
		return nil, err
	}
	p, err := r.Pipeline.Build()
	if err != nil {
		return nil, cerrors.Errorf("failed to build pipeline %q: %w", r.Pipeline.ID, err)
	}

	effect, err := r.newEffect(cfg, logger)
	if err != nil {
		return nil, cerrors.Errorf("failed to create %s effect: %w", r.Pipeline.Effect.Type, err)
	}

	lcCfg, err := cfg.lifecycleConfig(time.Now())
	if err != nil {
		return nil, err
	}
	src := source.New(r.Hub, r.Checkpointer, logger)
	r.Service = lifecycle.NewService(logger, src, p, effect, r.Checkpointer, lcCfg)
	r.Service.OnFailure(func(e lifecycle.FailureEvent) {
		logger.Warn(ctxutil.ContextWithRunID(ctx, e.RunID)).
			Err(e.Error).
			Str(log.PipelineIDField, r.Pipeline.ID).
			Msg("pipeline run failed")
	})

	return r, nil
}

func newLogger(level string, format string) log.CtxLogger {
	l, _ := zerolog.ParseLevel(level)
	f, _ := log.ParseFormat(format)
	logger := log.InitLogger(l, f).
		Hook(ctxutil.MessageLogCtxHook{}).
		Hook(ctxutil.RunIDLogCtxHook{})
	zerolog.DefaultContextLogger = &logger.Logger
	return logger
}

var prometheusOnce sync.Once

// configurePrometheus registers the metrics registry once per process.
func configurePrometheus() {
	prometheusOnce.Do(func() {
		registry := prometheus.NewRegistry(nil)
		promclient.MustRegister(registry)
		metrics.Register(registry)
	})
}

// NewStore creates the checkpoint store configured in cfg.
func NewStore(ctx context.Context, cfg Config, logger log.CtxLogger) (checkpoint.Store, error) {
	var (
		store checkpoint.Store
		err   error
	)
	switch cfg.Checkpoints.Type {
	case StoreTypeBadger:
		store, err = badger.New(logger, cfg.Checkpoints.Badger.Path, cfg.Checkpoints.Consumer)
	case StoreTypePostgres:
		store, err = postgres.New(ctx, logger, cfg.Checkpoints.Postgres.ConnectionString, cfg.Checkpoints.Postgres.Table, cfg.Checkpoints.Consumer)
	case StoreTypeSQLite:
		store, err = sqlite.New(ctx, logger, cfg.Checkpoints.SQLite.Path, cfg.Checkpoints.SQLite.Table, cfg.Checkpoints.Consumer)
	case StoreTypeInMemory:
		store = inmemory.New()
		logger.Warn(ctx).Msg("Using in-memory checkpoint store, all checkpoints will be lost when hubflow stops.")
	default:
		err = cerrors.Errorf("invalid checkpoint store type %q", cfg.Checkpoints.Type)
	}
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).
		Str(log.StoreTypeField, cfg.Checkpoints.Type).
		Str(log.ConsumerField, cfg.Checkpoints.Consumer).
		Msg("checkpoint store opened")
	return store, nil
}

func newHub(cfg Config, logger log.CtxLogger) (source.Hub, error) {
	switch cfg.Hub.Type {
	case HubTypeKafka:
		kcfg := hubkafka.DefaultConfig()
		kcfg.Servers = hubkafka.SplitServers(cfg.Hub.Kafka.Servers)
		kcfg.Topic = cfg.Hub.Kafka.Topic
		kcfg.ClientID = cfg.Hub.Kafka.ClientID
		if cfg.Hub.Kafka.MaxWait > 0 {
			kcfg.MaxWait = cfg.Hub.Kafka.MaxWait
		}
		return hubkafka.New(kcfg, logger)
	case HubTypeSimulator:
		devices, err := simulator.ParseDevices(cfg.Hub.Simulator.Devices)
		if err != nil {
			return nil, err
		}
		return simulator.New(simulator.Config{
			Devices:  devices,
			Interval: cfg.Hub.Simulator.Interval,
			Seed:     uint64(cfg.Hub.Simulator.Seed), //nolint:gosec // seed only needs to be reproducible
		})
	default:
		return nil, cerrors.Errorf("invalid hub type %q", cfg.Hub.Type)
	}
}

// newEffect creates the effect of the selected pipeline. Producers created for
// the effect are closed together with the runtime.
func (r *Runtime) newEffect(cfg Config, logger log.CtxLogger) (sink.Effect[pipeline.Reading], error) {
	e := r.Pipeline.Effect
	switch e.Type {
	case pipelineconfig.EffectDisplay:
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return sink.NewDisplay(
			sink.NewWriter(out),
			sink.DisplayFormat(e.Display.Format),
			r.Pipeline.AlertLabel(),
			e.Display.Low,
		), nil
	case pipelineconfig.EffectForward:
		if cfg.Effects.Kafka.Servers == "" {
			return nil, requiredConfigFieldErr("effects.kafka.servers")
		}
		p, err := r.newProducer(cfg, e.Forward.Topic, logger)
		if err != nil {
			return nil, err
		}
		return sink.NewForward[pipeline.Reading](p), nil
	case pipelineconfig.EffectCommand:
		if cfg.Effects.Kafka.Servers == "" {
			logger.Warn(context.Background()).
				Str(log.CommandNameField, e.Command.Name).
				Msg("no kafka servers configured for effects, commands will only be logged")
			return sink.NewCommand[pipeline.Reading](sink.NewLogSender(logger), e.Command.Name, e.Command.Properties), nil
		}
		p, err := r.newProducer(cfg, cfg.Effects.Kafka.CommandTopic, logger)
		if err != nil {
			return nil, err
		}
		return sink.NewCommand[pipeline.Reading](p, e.Command.Name, e.Command.Properties), nil
	default:
		return nil, cerrors.Errorf("unknown effect type %q", e.Type)
	}
}

func (r *Runtime) newProducer(cfg Config, topic string, logger log.CtxLogger) (*sinkkafka.Producer, error) {
	pcfg := sinkkafka.DefaultConfig()
	pcfg.Servers = hubkafka.SplitServers(cfg.Effects.Kafka.Servers)
	pcfg.Topic = topic
	p, err := sinkkafka.NewProducer(pcfg, logger)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, p)
	return p, nil
}

// lifecycleConfig converts the configuration into the configuration of the
// lifecycle service. FromTime durations are resolved relative to now.
func (c Config) lifecycleConfig(now time.Time) (lifecycle.Config, error) {
	partitions, err := c.partitions()
	if err != nil {
		return lifecycle.Config{}, invalidConfigFieldErr("source.partitions")
	}
	fromOffset, err := c.fromOffset()
	if err != nil {
		return lifecycle.Config{}, invalidConfigFieldErr("source.from-offset")
	}
	from, err := c.fromTime(now)
	if err != nil {
		return lifecycle.Config{}, invalidConfigFieldErr("source.from-time")
	}

	return lifecycle.Config{
		Source: source.Options{
			Partitions:   partitions,
			FromOffset:   fromOffset,
			FromTime:     from,
			SavePosition: c.Source.SavePosition,
			Prefetch:     c.Source.Prefetch,
			BatchSize:    c.Source.BatchSize,
			PollInterval: c.Source.PollInterval,
			Retry:        source.DefaultRetryOptions(),
		},
		Sink: sink.Options{
			CheckpointEvery: c.Checkpoints.Every,
		},
		Supervision: supervision.Config{
			HaltOnSinkFailures: c.Pipeline.SinkFailures.Halt,
			WindowSize:         c.Pipeline.SinkFailures.WindowSize,
			WindowThreshold:    c.Pipeline.SinkFailures.WindowThreshold,
		},
		ErrorRecovery: lifecycle.ErrorRecoveryConfig{
			MinDelay:      c.Pipeline.ErrorRecovery.MinDelay,
			MaxDelay:      c.Pipeline.ErrorRecovery.MaxDelay,
			BackoffFactor: float64(c.Pipeline.ErrorRecovery.BackoffFactor),
			MaxRetries:    c.Pipeline.ErrorRecovery.MaxRetries,
		},
		FlushTimeout: exitTimeout,
	}, nil
}

// Run starts the pipeline and blocks until ctx is canceled or the pipeline
// stops. A pipeline halt is returned as an error wrapping a
// lifecycle.HaltError.
func (r *Runtime) Run(ctx context.Context) (err error) {
	t, ctx := tomb.WithContext(ctx)

	defer func() {
		if err != nil {
			// This means run failed, we kill the tomb to stop any goroutines
			// that might have been already started.
			t.Kill(err)
		}
		// Block until tomb is dying, then wait for goroutines to stop running.
		<-t.Dying()
		r.logger.Warn(ctx).Msg("hubflow is stopping, stand by for shutdown ...")
		err = t.Wait()
	}()

	// Register cleanup function that will run after tomb is killed
	r.registerCleanup(t)

	if r.Config.Metrics.Address != "" {
		r.MetricsAddr, err = r.serveMetrics(ctx, t)
		if err != nil {
			return cerrors.Errorf("failed to serve metrics: %w", err)
		}
	}

	err = r.Service.Start(ctx)
	if err != nil {
		close(r.serviceDone)
		return cerrors.Errorf("failed to start pipeline %q: %w", r.Pipeline.ID, err)
	}
	t.Go(func() error {
		defer close(r.serviceDone)
		err := r.Service.Wait()
		if err != nil {
			return cerrors.Errorf("pipeline %q stopped: %w", r.Pipeline.ID, err)
		}
		// the pipeline stopped gracefully, take down the rest of the runtime
		t.Kill(nil)
		return nil
	})

	r.logger.Info(ctx).
		Str(log.PipelineIDField, r.Pipeline.ID).
		Str(log.HubTypeField, r.Config.Hub.Type).
		Msg("pipeline started")
	close(r.Ready)
	return nil
}

func (r *Runtime) registerCleanup(t *tomb.Tomb) {
	t.Go(func() error {
		<-t.Dying()
		// start cleanup with a fresh context
		ctx := context.Background()

		r.Service.Stop()
		select {
		case <-r.serviceDone:
		case <-time.After(exitTimeout):
			r.logger.Warn(ctx).Msg("pipeline did not stop in time, closing resources anyway")
		}
		return r.close()
	})
}

// close releases all resources in reverse order of creation.
func (r *Runtime) close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return cerrors.Join(errs...)
}

func (r *Runtime) serveMetrics(ctx context.Context, t *tomb.Tomb) (net.Addr, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return r.serveHTTP(ctx, t, &http.Server{
		Addr:              r.Config.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	})
}

func (r *Runtime) serveHTTP(
	ctx context.Context,
	t *tomb.Tomb,
	srv *http.Server,
) (net.Addr, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, cerrors.Errorf("failed to listen on address %q: %w", srv.Addr, err)
	}

	t.Go(func() error {
		err := srv.Serve(ln)
		if err != nil {
			if cerrors.Is(err, http.ErrServerClosed) {
				// ignore expected close
				return nil
			}
			return cerrors.Errorf("http server listening on %q stopped with error: %w", ln.Addr(), err)
		}
		return nil
	})
	t.Go(func() error {
		<-t.Dying()
		// start server shutdown with a timeout, use fresh context
		ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	r.logger.Info(ctx).Str(log.ServerAddressField, ln.Addr().String()).Msg("metrics server started")
	return ln.Addr(), nil
}
