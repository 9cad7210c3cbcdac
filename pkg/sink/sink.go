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

//go:generate mockgen -destination=mock/effects.go -package=mock -mock_names=Forwarder=Forwarder,CommandSender=CommandSender,Writer=Writer . Forwarder,CommandSender,Writer

// Package sink executes the side effect of pipeline results and acknowledges
// the processed messages by advancing per-partition cursors and persisting
// them as checkpoints.
package sink

import (
	"context"
	"sort"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/ctxutil"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/foundation/metrics"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/conduitio/hubflow/pkg/pipeline"
)

// DefaultCheckpointEvery is the number of acknowledged messages per partition
// after which the position is persisted.
const DefaultCheckpointEvery = 1

// ErrSinkDelivery is returned when the side effect of a record failed.
var ErrSinkDelivery = cerrors.New("sink delivery failed")

// Effect is the side effect executed for every record produced by the
// pipeline.
type Effect[T any] interface {
	// Type identifies the effect in logs and metrics.
	Type() string
	Apply(ctx context.Context, rec pipeline.Record[T]) error
}

type Options struct {
	// SavePosition enables persisting the acknowledged positions.
	SavePosition bool
	// CheckpointEvery controls how many acknowledgments of a partition are
	// batched in one checkpoint write.
	CheckpointEvery int
}

// Sink consumes pipeline results in the order they are produced. It is not
// safe for concurrent use, results of all partitions are expected to be
// consumed by a single goroutine.
type Sink[T any] struct {
	effect       Effect[T]
	checkpointer *checkpoint.Checkpointer
	opts         Options
	logger       log.CtxLogger

	cursors map[int]*cursor.Cursor
	// pinned contains partitions with a failed delivery, their cursors are
	// not advanced anymore until the sink is recreated.
	pinned map[int]bool

	effectTimer metrics.Timer
}

// New creates a sink executing effect. The checkpointer can be nil if
// SavePosition is disabled.
func New[T any](
	effect Effect[T],
	checkpointer *checkpoint.Checkpointer,
	opts Options,
	logger log.CtxLogger,
) (*Sink[T], error) {
	if opts.SavePosition && checkpointer == nil {
		return nil, cerrors.New("checkpointer is required to save positions")
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	return &Sink[T]{
		effect:       effect,
		checkpointer: checkpointer,
		opts:         opts,
		logger:       logger.WithComponent("sink.Sink"),
		cursors:      make(map[int]*cursor.Cursor),
		pinned:       make(map[int]bool),
		effectTimer:  measure.SinkDurationTimer.WithValues(effect.Type()),
	}, nil
}

// Init sets the starting position of a partition, i.e. the last offset that
// was acknowledged before the sink was created. Partitions that are not
// initialized start without an acknowledged offset.
func (s *Sink[T]) Init(pos cursor.Position) {
	s.cursors[pos.Partition] = cursor.New(pos)
}

// Consume executes the side effect for records and acknowledges records and
// skipped messages. A failed side effect returns an error wrapping
// ErrSinkDelivery and pins the position of the partition. Error results are
// not acknowledged and their error is returned.
func (s *Sink[T]) Consume(ctx context.Context, res pipeline.Result[T]) error {
	msg := res.Message
	ctx = ctxutil.ContextWithMessage(ctx, msg.Partition, msg.Offset)
	partition := measure.PartitionLabel(msg.Partition)

	switch res.Outcome {
	case pipeline.OutcomeRecord:
		start := time.Now()
		err := s.effect.Apply(ctx, res.Record)
		s.effectTimer.UpdateSince(start)
		if err != nil {
			measure.MessagesCounter.WithValues(partition, measure.OutcomeFailed).Inc()
			s.pin(ctx, msg.Partition)
			return cerrors.Errorf("%s effect on partition %d offset %d: %w",
				s.effect.Type(), msg.Partition, msg.Offset, cerrors.Join(ErrSinkDelivery, err))
		}
		measure.MessagesCounter.WithValues(partition, measure.OutcomeDelivered).Inc()
		return s.ack(ctx, msg.Partition, msg.Offset)
	case pipeline.OutcomeSkip:
		s.logger.Trace(ctx).
			Str(log.SkipReasonField, res.Reason).
			Str(log.StageField, res.Stage).
			Msg("message skipped")
		measure.MessagesCounter.WithValues(partition, measure.OutcomeSkipped).Inc()
		return s.ack(ctx, msg.Partition, msg.Offset)
	case pipeline.OutcomeError:
		measure.MessagesCounter.WithValues(partition, measure.OutcomeErrored).Inc()
		return cerrors.Errorf("stage %q on partition %d offset %d: %w",
			res.Stage, msg.Partition, msg.Offset, res.Err)
	default:
		return cerrors.Errorf("unexpected outcome %v", res.Outcome)
	}
}

func (s *Sink[T]) ack(ctx context.Context, partition int, offset int64) error {
	if s.pinned[partition] {
		s.logger.Trace(ctx).Msg("partition pinned after failed delivery, position not advanced")
		return nil
	}

	c := s.cursor(partition)
	if err := c.Advance(offset); err != nil {
		return err
	}
	if s.opts.SavePosition && c.Pending() >= s.opts.CheckpointEvery {
		return s.save(ctx, c)
	}
	return nil
}

func (s *Sink[T]) pin(ctx context.Context, partition int) {
	if s.pinned[partition] {
		return
	}
	s.pinned[partition] = true
	s.logger.Warn(ctx).
		Int64(log.CheckpointField, s.cursor(partition).Current().Offset).
		Msg("delivery failed, pinning partition position until restart")
}

func (s *Sink[T]) cursor(partition int) *cursor.Cursor {
	c, ok := s.cursors[partition]
	if !ok {
		c = cursor.New(cursor.Position{Partition: partition, Offset: cursor.NoOffset})
		s.cursors[partition] = c
	}
	return c
}

func (s *Sink[T]) save(ctx context.Context, c *cursor.Cursor) error {
	saved, err := s.checkpointer.Save(ctx, c.Snapshot())
	if err != nil {
		return err
	}
	c.MarkSaved(saved)
	return nil
}

// Flush persists the positions of all partitions that were advanced since
// they were last saved. It does nothing if SavePosition is disabled.
func (s *Sink[T]) Flush(ctx context.Context) error {
	if !s.opts.SavePosition {
		return nil
	}
	var errs []error
	for _, p := range s.partitions() {
		c := s.cursors[p]
		if !c.Dirty() {
			continue
		}
		if err := s.save(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return cerrors.Join(errs...)
}

// Positions returns the acknowledged positions ordered by partition.
func (s *Sink[T]) Positions() []cursor.Position {
	out := make([]cursor.Position, 0, len(s.cursors))
	for _, p := range s.partitions() {
		out = append(out, s.cursors[p].Current())
	}
	return out
}

func (s *Sink[T]) partitions() []int {
	out := make([]int, 0, len(s.cursors))
	for p := range s.cursors {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
