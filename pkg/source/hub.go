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

//go:generate mockgen -destination=mock/hub.go -package=mock -mock_names=Hub=Hub . Hub

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
)

var (
	// ErrSourcePull is returned when messages could not be fetched from the
	// hub after all retries.
	ErrSourcePull = cerrors.New("source pull failed")
	// ErrUnknownPartition is returned by Open when a requested partition is
	// not listed by the hub.
	ErrUnknownPartition = cerrors.New("unknown partition")
	// ErrStreamClosed is returned by Stream.Read after the stream was closed.
	ErrStreamClosed = cerrors.New("stream closed")
)

// Hub is a partitioned event hub messages are read from.
type Hub interface {
	// ListPartitions returns the IDs of all partitions in the hub.
	ListPartitions(ctx context.Context) ([]int, error)
	// Fetch returns at most maxCount messages of the partition, starting at
	// start. Messages are returned in offset order. An empty slice means no
	// messages are currently available.
	Fetch(ctx context.Context, partition int, start StartPosition, maxCount int) ([]message.Message, error)
	// Close releases all resources held by the hub.
	Close() error
}

// StartPosition describes where reading of a partition starts. It is either
// an inclusive offset or a point in time.
type StartPosition struct {
	offset int64
	time   time.Time
	byTime bool
}

// AtOffset returns a start position that includes the message with offset.
func AtOffset(offset int64) StartPosition {
	return StartPosition{offset: offset}
}

// AtTime returns a start position pointing at the first message enqueued at
// or after t.
func AtTime(t time.Time) StartPosition {
	return StartPosition{time: t, byTime: true}
}

// Offset returns the offset and true if the position is an offset.
func (p StartPosition) Offset() (int64, bool) {
	return p.offset, !p.byTime
}

// Time returns the time and true if the position is a point in time.
func (p StartPosition) Time() (time.Time, bool) {
	return p.time, p.byTime
}

func (p StartPosition) String() string {
	if p.byTime {
		return "time " + p.time.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("offset %d", p.offset)
}
