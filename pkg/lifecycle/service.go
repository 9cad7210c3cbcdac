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

// Package lifecycle runs a pipeline: it reads messages from the source,
// applies the pipeline and hands the results to the sink until it is stopped
// or the supervision policy halts it.
package lifecycle

import (
	"context"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/ctxutil"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/conduitio/hubflow/pkg/pipeline"
	"github.com/conduitio/hubflow/pkg/sink"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/conduitio/hubflow/pkg/supervision"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"gopkg.in/tomb.v2"
)

var ErrServiceRunning = cerrors.New("service is already running")

// HaltError is returned when the supervision policy halted the pipeline.
type HaltError struct {
	Cause error
}

func (e *HaltError) Error() string {
	return "pipeline halted: " + e.Cause.Error()
}

func (e *HaltError) Unwrap() error {
	return e.Cause
}

type FailureEvent struct {
	// RunID is the ID of the run that failed.
	RunID string
	Error error
}

type FailureHandler func(FailureEvent)

// ErrorRecoveryConfig controls how a halted pipeline is restarted.
type ErrorRecoveryConfig struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// MaxRetries is the number of restarts after a halt caused by a non-fatal
	// error. 0 means a halt is always terminal.
	MaxRetries int
}

type Config struct {
	Source        source.Options
	Sink          sink.Options
	Supervision   supervision.Config
	ErrorRecovery ErrorRecoveryConfig
	// FlushTimeout limits the time spent saving checkpoints when a run stops.
	FlushTimeout time.Duration
}

// Service runs a pipeline producing values of type T.
type Service[T any] struct {
	logger log.CtxLogger

	source       *source.Source
	pipeline     *pipeline.Pipeline[T]
	effect       sink.Effect[T]
	checkpointer *checkpoint.Checkpointer
	cfg          Config

	handlers []FailureHandler
	t        *tomb.Tomb
}

// NewService initializes and returns a lifecycle.Service. The checkpointer
// can be nil if positions are not saved.
func NewService[T any](
	logger log.CtxLogger,
	src *source.Source,
	p *pipeline.Pipeline[T],
	effect sink.Effect[T],
	checkpointer *checkpoint.Checkpointer,
	cfg Config,
) *Service[T] {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 30 * time.Second
	}
	// the sink only saves what the source resumes from
	cfg.Sink.SavePosition = cfg.Source.SavePosition
	return &Service[T]{
		logger:       logger.WithComponent("lifecycle.Service"),
		source:       src,
		pipeline:     p,
		effect:       effect,
		checkpointer: checkpointer,
		cfg:          cfg,
	}
}

// OnFailure registers a handler called when a run stops with an error,
// including runs that are restarted afterwards.
func (s *Service[T]) OnFailure(handler FailureHandler) {
	s.handlers = append(s.handlers, handler)
}

// Start runs the pipeline in the background. The pipeline runs until ctx is
// canceled, Stop is called or it halts.
func (s *Service[T]) Start(ctx context.Context) error {
	if s.t != nil && s.t.Alive() {
		return ErrServiceRunning
	}
	s.t = &tomb.Tomb{}
	s.t.Go(func() error {
		return s.run(s.t.Context(ctx))
	})
	return nil
}

// Stop gracefully stops the pipeline, acknowledged positions are saved
// before the service stops.
func (s *Service[T]) Stop() {
	if s.t != nil {
		s.t.Kill(nil)
	}
}

// Wait blocks until the service stops and returns the reason. A graceful stop
// returns nil.
func (s *Service[T]) Wait() error {
	if s.t == nil {
		return nil
	}
	err := s.t.Wait()
	if cerrors.Is(err, tomb.ErrStillAlive) {
		return nil
	}
	return err
}

// Run starts the service and blocks until it stops.
func (s *Service[T]) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

func (s *Service[T]) run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    s.cfg.ErrorRecovery.MinDelay,
		Max:    s.cfg.ErrorRecovery.MaxDelay,
		Factor: s.cfg.ErrorRecovery.BackoffFactor,
		Jitter: true,
	}

	for {
		runID := uuid.NewString()
		runCtx := ctxutil.ContextWithRunID(ctx, runID)

		err := s.runOnce(runCtx)
		if err == nil {
			return nil
		}
		s.notify(runID, err)

		var haltErr *HaltError
		if !cerrors.As(err, &haltErr) || cerrors.IsFatalError(err) {
			return err
		}
		attempt := int(b.Attempt())
		if attempt >= s.cfg.ErrorRecovery.MaxRetries {
			return err
		}

		delay := b.Duration()
		s.logger.Warn(runCtx).
			Err(err).
			Int(log.AttemptField, attempt+1).
			Dur(log.DurationField, delay).
			Msg("pipeline halted, restarting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		measure.PipelineRestartsCounter.Inc()
	}
}

// runOnce opens a new stream and processes messages until ctx is canceled or
// the policy halts.
func (s *Service[T]) runOnce(ctx context.Context) (err error) {
	policy := supervision.NewPolicy(s.cfg.Supervision, s.logger)

	snk, err := sink.New(s.effect, s.checkpointer, s.cfg.Sink, s.logger)
	if err != nil {
		return cerrors.Errorf("could not create sink: %w", err)
	}

	stream, err := s.source.Open(ctx, s.cfg.Source)
	if err != nil {
		return cerrors.Errorf("could not open source: %w", err)
	}
	for p, start := range stream.StartPositions() {
		if off, ok := start.Offset(); ok {
			snk.Init(cursor.Position{Partition: p, Offset: off - 1})
		}
	}

	s.logger.Info(ctx).Msg("pipeline started")
	defer func() {
		closeErr := stream.Close()
		err = cerrors.LogOrReplace(err, closeErr, func() {
			s.logger.Err(ctx, closeErr).Msg("could not close source stream")
		})

		// use fresh context for flushing, ctx is most likely canceled
		flushCtx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushTimeout)
		defer cancel()
		flushErr := snk.Flush(flushCtx)
		err = cerrors.LogOrReplace(err, flushErr, func() {
			s.logger.Err(ctx, flushErr).Msg("could not flush checkpoints")
		})

		e := s.logger.Info(ctx)
		if err != nil {
			e = s.logger.Err(ctx, err)
		}
		for _, pos := range snk.Positions() {
			e = e.Int64("partition_"+measure.PartitionLabel(pos.Partition), pos.Offset)
		}
		e.Msg("pipeline stopped")
	}()

	for {
		msg, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// the stream can not be read anymore
			policy.Decide(ctx, supervision.Failure{Err: cerrors.FatalError(err)})
			return &HaltError{Cause: policy.Err()}
		}

		msgCtx := ctxutil.ContextWithMessage(ctx, msg.Partition, msg.Offset)
		res := s.pipeline.Apply(msgCtx, msg)
		err = snk.Consume(msgCtx, res)
		if err == nil {
			if res.Outcome == pipeline.OutcomeRecord {
				policy.Delivered(msg.Partition)
			}
			continue
		}
		if ctx.Err() != nil && cerrors.Is(err, ctx.Err()) {
			return nil
		}

		policy.Decide(msgCtx, supervision.Failure{
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Err:       err,
		})
		select {
		case <-policy.Halted():
			return &HaltError{Cause: policy.Err()}
		default:
		}
	}
}

// notify notifies all registered FailureHandlers about an error.
func (s *Service[T]) notify(runID string, err error) {
	e := FailureEvent{
		RunID: runID,
		Error: err,
	}
	for _, handler := range s.handlers {
		handler(e)
	}
}
