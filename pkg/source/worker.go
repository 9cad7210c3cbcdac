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

package source

import (
	"context"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cchan"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/gammazero/deque"
	"github.com/jpillora/backoff"
)

// worker reads a single partition. It buffers at most Prefetch messages in
// its local queue and hands them one by one to the merge channel.
type worker struct {
	partition int
	hub       Hub
	out       cchan.ChanIn[message.Message]
	queue     deque.Deque[message.Message]

	// next is the position of the next fetch.
	next StartPosition
	// last is the offset of the last message accepted into the queue.
	last int64

	opts   Options
	logger log.CtxLogger
}

type fetchResult struct {
	msgs []message.Message
	err  error
}

// run hands queued messages to the merge channel while the next batch is
// fetched in the background, so a slow fetch never delays buffered messages.
func (w *worker) run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    w.opts.Retry.MinDelay,
		Max:    w.opts.Retry.MaxDelay,
		Factor: w.opts.Retry.Factor,
		Jitter: true,
	}

	// fetched is non-nil while a fetch is in flight.
	var fetched chan fetchResult
	defer func() {
		if fetched != nil {
			<-fetched // ctx is done, the fetch returns promptly
		}
	}()

	for {
		if fetched == nil && w.hasRoom() {
			fetched = make(chan fetchResult, 1)
			go func(next StartPosition, maxCount int) {
				msgs, err := w.fetch(ctx, b, next, maxCount)
				fetched <- fetchResult{msgs: msgs, err: err}
			}(w.next, w.fetchSize())
		}

		var out chan<- message.Message
		var front message.Message
		if w.queue.Len() > 0 {
			out, front = w.out, w.queue.Front()
		}

		select {
		case <-ctx.Done():
			return nil // stream is closing
		case out <- front:
			w.queue.PopFront()
		case res := <-fetched:
			fetched = nil
			if res.err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return res.err
			}
			w.enqueue(ctx, res.msgs)
			if len(res.msgs) == 0 && w.queue.Len() == 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(w.opts.PollInterval):
				}
			}
		}
	}
}

// hasRoom reports whether a full batch fits into the queue. An empty queue
// always has room.
func (w *worker) hasRoom() bool {
	return w.queue.Len() == 0 || w.queue.Len()+w.opts.BatchSize <= w.opts.Prefetch
}

func (w *worker) fetchSize() int {
	return min(w.opts.BatchSize, w.opts.Prefetch-w.queue.Len())
}

// fetch fetches the next batch, retrying failed fetches with backoff. After
// MaxRetries consecutive failures a fatal ErrSourcePull is returned.
func (w *worker) fetch(ctx context.Context, b *backoff.Backoff, next StartPosition, maxCount int) ([]message.Message, error) {
	for {
		start := time.Now()
		msgs, err := w.hub.Fetch(ctx, w.partition, next, maxCount)
		measure.SourceFetchDurationTimer.WithValues(measure.PartitionLabel(w.partition)).UpdateSince(start)
		if err == nil {
			b.Reset()
			if len(msgs) > maxCount {
				msgs = msgs[:maxCount]
			}
			return msgs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		attempt := int(b.Attempt())
		if cerrors.IsFatalError(err) || attempt >= w.opts.Retry.MaxRetries {
			return nil, cerrors.FatalError(cerrors.Errorf(
				"partition %d: could not fetch messages from %v after %d attempts: %w",
				w.partition, next, attempt+1, cerrors.Join(ErrSourcePull, err),
			))
		}

		measure.SourceFetchRetriesCounter.WithValues(measure.PartitionLabel(w.partition)).Inc()
		delay := b.Duration()
		w.logger.Warn(ctx).
			Err(err).
			Int(log.PartitionField, w.partition).
			Int(log.AttemptField, attempt+1).
			Dur(log.DurationField, delay).
			Msg("could not fetch messages, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// enqueue adds fetched messages to the queue. Messages with an offset not
// above the last accepted offset are dropped.
func (w *worker) enqueue(ctx context.Context, msgs []message.Message) {
	label := measure.PartitionLabel(w.partition)
	for _, msg := range msgs {
		if msg.Offset <= w.last {
			w.logger.Warn(ctx).
				Int(log.PartitionField, w.partition).
				Int64(log.OffsetField, msg.Offset).
				Int64("last_offset", w.last).
				Msg("hub returned message with out of order offset, dropping message")
			continue
		}
		msg.Partition = w.partition
		w.last = msg.Offset
		w.queue.PushBack(msg)

		measure.MessagesReceivedCounter.WithValues(label).Inc()
		measure.MessageBytesHistogram.WithValues(label).Observe(float64(len(msg.Body)))
	}
	if len(msgs) > 0 {
		w.next = AtOffset(w.last + 1)
	}
}
