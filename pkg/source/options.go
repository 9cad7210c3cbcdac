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
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

const (
	DefaultPrefetch     = 32
	DefaultBatchSize    = 16
	DefaultPollInterval = 500 * time.Millisecond
)

// Options control how a Stream reads from the hub.
type Options struct {
	// Partitions lists the partitions to read. If empty, all partitions of
	// the hub are read.
	Partitions []int
	// FromTime is used as the start position of partitions without a
	// checkpoint or explicit offset. Zero means the time the stream is opened.
	FromTime time.Time
	// FromOffset contains explicit start offsets (inclusive) by partition.
	// They take precedence over checkpoints.
	FromOffset map[int]int64
	// SavePosition enables resuming from stored checkpoints.
	SavePosition bool

	// Prefetch is the maximum number of messages buffered per partition.
	Prefetch int
	// BatchSize is the maximum number of messages fetched in one call. It is
	// capped at Prefetch.
	BatchSize int
	// PollInterval is the time waited after a fetch returned no messages.
	PollInterval time.Duration

	Retry RetryOptions
}

// RetryOptions control how failed fetches are retried.
type RetryOptions struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Factor   float64
	// MaxRetries is the number of consecutive failed fetches retried before
	// the stream fails.
	MaxRetries int
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MinDelay:   100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Factor:     2,
		MaxRetries: 10,
	}
}

// withDefaults returns a copy of the options with zero values replaced by
// defaults and the batch size capped at the prefetch size.
func (o Options) withDefaults() Options {
	if o.Prefetch == 0 {
		o.Prefetch = DefaultPrefetch
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchSize > o.Prefetch {
		o.BatchSize = o.Prefetch
	}
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Retry == (RetryOptions{}) {
		o.Retry = DefaultRetryOptions()
	}
	return o
}

func (o Options) validate() error {
	var errs []error
	if o.Prefetch < 1 {
		errs = append(errs, cerrors.Errorf("prefetch must be positive, got %d", o.Prefetch))
	}
	if o.BatchSize < 1 {
		errs = append(errs, cerrors.Errorf("batch size must be positive, got %d", o.BatchSize))
	}
	if o.PollInterval < 0 {
		errs = append(errs, cerrors.Errorf("poll interval must not be negative, got %v", o.PollInterval))
	}
	if o.Retry.MaxRetries < 0 {
		errs = append(errs, cerrors.Errorf("max retries must not be negative, got %d", o.Retry.MaxRetries))
	}
	for p, off := range o.FromOffset {
		if off < 0 {
			errs = append(errs, cerrors.Errorf("start offset of partition %d must not be negative, got %d", p, off))
		}
	}
	return cerrors.Join(errs...)
}
