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

package checkpoint

import (
	"context"
	"time"

	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/jpillora/backoff"
)

// RetryConfig controls how failed saves are retried.
type RetryConfig struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Factor     float64
	MaxRetries int
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MinDelay:   100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Factor:     2,
		MaxRetries: 5,
	}
}

// Checkpointer saves positions to a Store, retrying failed saves with an
// exponential backoff.
type Checkpointer struct {
	store  Store
	logger log.CtxLogger
	retry  RetryConfig
}

func NewCheckpointer(store Store, logger log.CtxLogger, retry RetryConfig) *Checkpointer {
	return &Checkpointer{
		store:  store,
		logger: logger.WithComponent("checkpoint.Checkpointer"),
		retry:  retry,
	}
}

// Load returns the stored position of the partition or ErrNotFound.
func (c *Checkpointer) Load(ctx context.Context, partition int) (cursor.Position, error) {
	return c.store.Load(ctx, partition)
}

// Save persists pos and returns the stored position. If the store keeps
// failing, ErrCheckpointWrite wrapped in a fatal error is returned.
func (c *Checkpointer) Save(ctx context.Context, pos cursor.Position) (cursor.Position, error) {
	b := &backoff.Backoff{
		Min:    c.retry.MinDelay,
		Max:    c.retry.MaxDelay,
		Factor: c.retry.Factor,
		Jitter: true,
	}

	for {
		attempt := int(b.Attempt())
		stored, err := c.store.Save(ctx, pos)
		if err == nil {
			measure.CheckpointOffsetGauge.WithValues(measure.PartitionLabel(pos.Partition)).Set(float64(stored.Offset))
			c.logger.Trace(ctx).
				Int(log.PartitionField, pos.Partition).
				Int64(log.CheckpointField, stored.Offset).
				Int(log.AttemptField, attempt+1).
				Msg("checkpoint saved")
			return stored, nil
		}
		if ctx.Err() != nil {
			return cursor.Position{}, ctx.Err()
		}
		if attempt >= c.retry.MaxRetries {
			return cursor.Position{}, cerrors.FatalError(cerrors.Errorf(
				"partition %d: could not save offset %d after %d attempts: %w",
				pos.Partition, pos.Offset, attempt+1, cerrors.Join(ErrCheckpointWrite, err),
			))
		}

		measure.CheckpointSaveRetriesCounter.Inc()
		delay := b.Duration()
		c.logger.Warn(ctx).
			Err(err).
			Int(log.PartitionField, pos.Partition).
			Int64(log.CheckpointField, pos.Offset).
			Int(log.AttemptField, attempt+1).
			Dur(log.DurationField, delay).
			Msg("could not save checkpoint, retrying")

		select {
		case <-ctx.Done():
			return cursor.Position{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Reset removes the stored position of the partition.
func (c *Checkpointer) Reset(ctx context.Context, partition int) error {
	return c.store.Reset(ctx, partition)
}

// List returns all stored positions.
func (c *Checkpointer) List(ctx context.Context) ([]cursor.Position, error) {
	return c.store.List(ctx)
}
