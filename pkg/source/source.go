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

// Package source reads messages from the partitions of a hub and merges them
// into a single stream, preserving the order within each partition.
package source

import (
	"context"
	"slices"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cchan"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/sourcegraph/conc/pool"
	"gopkg.in/tomb.v2"
)

// CheckpointLoader loads the stored position of a partition. It returns
// checkpoint.ErrNotFound if the partition has no checkpoint.
type CheckpointLoader interface {
	Load(ctx context.Context, partition int) (cursor.Position, error)
}

// Source opens streams of messages from a hub.
type Source struct {
	hub    Hub
	loader CheckpointLoader
	logger log.CtxLogger

	now func() time.Time
}

// New creates a source reading from hub. The loader is only used when a
// stream is opened with SavePosition, it can be nil otherwise.
func New(hub Hub, loader CheckpointLoader, logger log.CtxLogger) *Source {
	return &Source{
		hub:    hub,
		loader: loader,
		logger: logger.WithComponent("source.Source"),
		now:    time.Now,
	}
}

// Open resolves the start position of every requested partition and starts
// one worker per partition. The returned stream needs to be closed.
func (s *Source) Open(ctx context.Context, opts Options) (*Stream, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, cerrors.Errorf("invalid source options: %w", err)
	}

	partitions, err := s.partitions(ctx, opts.Partitions)
	if err != nil {
		return nil, err
	}

	starts, err := s.startPositions(ctx, partitions, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan message.Message) // unbuffered, lookahead is bounded by worker queues
	stream := &Stream{
		t:      &tomb.Tomb{},
		out:    out,
		hub:    s.hub,
		starts: starts,
		logger: s.logger,
	}

	for _, p := range partitions {
		w := &worker{
			partition: p,
			hub:       s.hub,
			out:       out,
			next:      starts[p],
			last:      cursor.NoOffset,
			opts:      opts,
			logger:    s.logger.WithComponent("source.worker"),
		}
		if off, ok := starts[p].Offset(); ok {
			w.last = off - 1
		}

		stream.t.Go(func() error {
			//nolint:staticcheck // nil uses the default parent context
			return w.run(stream.t.Context(nil))
		})
	}

	s.logger.Info(ctx).
		Ints("partitions", partitions).
		Bool("save_position", opts.SavePosition).
		Int("prefetch", opts.Prefetch).
		Int("batch_size", opts.BatchSize).
		Msg("source stream opened")

	return stream, nil
}

// partitions returns the partitions to read, failing if a requested partition
// is not listed by the hub.
func (s *Source) partitions(ctx context.Context, requested []int) ([]int, error) {
	available, err := s.hub.ListPartitions(ctx)
	if err != nil {
		return nil, cerrors.Errorf("could not list partitions: %w", err)
	}
	if len(available) == 0 {
		return nil, cerrors.New("hub has no partitions")
	}
	if len(requested) == 0 {
		out := slices.Clone(available)
		slices.Sort(out)
		return out, nil
	}

	var errs []error
	out := make([]int, 0, len(requested))
	for _, p := range requested {
		if !slices.Contains(available, p) {
			errs = append(errs, cerrors.Errorf("partition %d: %w", p, ErrUnknownPartition))
			continue
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	if len(errs) > 0 {
		return nil, cerrors.Join(errs...)
	}
	slices.Sort(out)
	return out, nil
}

// startPositions resolves the start position of each partition. Explicit
// offsets win over checkpoints, checkpoints win over FromTime and FromTime
// wins over the current time.
func (s *Source) startPositions(ctx context.Context, partitions []int, opts Options) (map[int]StartPosition, error) {
	fallback := AtTime(opts.FromTime)
	if opts.FromTime.IsZero() {
		fallback = AtTime(s.now())
	}

	type result struct {
		partition int
		start     StartPosition
	}

	p := pool.NewWithResults[result]().WithContext(ctx)
	for _, partition := range partitions {
		p.Go(func(ctx context.Context) (result, error) {
			if off, ok := opts.FromOffset[partition]; ok {
				return result{partition, AtOffset(off)}, nil
			}
			if opts.SavePosition && s.loader != nil {
				pos, err := s.loader.Load(ctx, partition)
				switch {
				case err == nil:
					return result{partition, AtOffset(pos.Next())}, nil
				case !cerrors.Is(err, checkpoint.ErrNotFound):
					return result{}, cerrors.Errorf("partition %d: could not load checkpoint: %w", partition, err)
				}
			}
			return result{partition, fallback}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	starts := make(map[int]StartPosition, len(results))
	for _, r := range results {
		starts[r.partition] = r.start
		s.logger.Debug(ctx).
			Int(log.PartitionField, r.partition).
			Stringer("start", r.start).
			Msg("resolved start position")
	}
	return starts, nil
}

// Stream is a merged stream of messages from multiple partitions.
type Stream struct {
	t      *tomb.Tomb
	out    cchan.ChanOut[message.Message]
	hub    Hub
	starts map[int]StartPosition
	logger log.CtxLogger
}

// Read returns the next message of any partition. Messages of the same
// partition are returned in offset order. If a worker failed, the error is
// returned and the stream is done.
func (s *Stream) Read(ctx context.Context) (message.Message, error) {
	select {
	case <-ctx.Done():
		return message.Message{}, ctx.Err()
	case <-s.t.Dying():
		return message.Message{}, s.err()
	case msg := <-s.out:
		return msg, nil
	}
}

// StartPositions returns the resolved start position of each partition.
func (s *Stream) StartPositions() map[int]StartPosition {
	out := make(map[int]StartPosition, len(s.starts))
	for k, v := range s.starts {
		out[k] = v
	}
	return out
}

// Close stops all workers and closes the hub. Buffered messages are
// discarded.
func (s *Stream) Close() error {
	s.t.Kill(nil)
	_ = s.t.Wait() // worker errors are returned by Read
	return s.hub.Close()
}

func (s *Stream) err() error {
	err := s.t.Err()
	if err == nil || err == tomb.ErrStillAlive {
		return ErrStreamClosed
	}
	return err
}
