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

//go:generate mockgen -destination=mock/store.go -package=mock -mock_names=Store=Store . Store

// Package checkpoint persists the acknowledged position of each partition so
// that a restarted run can resume where the previous one stopped.
package checkpoint

import (
	"context"
	"time"

	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

var (
	// ErrNotFound is returned by Store.Load when no checkpoint exists for a
	// partition.
	ErrNotFound = cerrors.New("checkpoint not found")
	// ErrCheckpointWrite is returned by the Checkpointer when a checkpoint
	// could not be saved after all retries.
	ErrCheckpointWrite = cerrors.New("checkpoint write failed")
)

// Store persists one position per partition. Positions stored by Save never
// regress: the stored offset is always the maximum of all saved offsets.
type Store interface {
	// Load returns the stored position of the partition or ErrNotFound.
	Load(ctx context.Context, partition int) (cursor.Position, error)
	// Save stores pos if its offset is greater than the stored offset and
	// returns the position that is stored after the call.
	Save(ctx context.Context, pos cursor.Position) (cursor.Position, error)
	// Reset removes the stored position of the partition. Resetting a
	// partition without a checkpoint is not an error.
	Reset(ctx context.Context, partition int) error
	// List returns all stored positions ordered by partition.
	List(ctx context.Context) ([]cursor.Position, error)
	// Close releases resources held by the store.
	Close() error
}

// Record is the serialized form of a position used by key/value backends.
type Record struct {
	Partition   int       `json:"partition_id"`
	Offset      int64     `json:"offset"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewRecord(pos cursor.Position) Record {
	return Record{
		Partition:   pos.Partition,
		Offset:      pos.Offset,
		LastUpdated: pos.UpdatedAt.UTC(),
	}
}

func (r Record) Position() cursor.Position {
	return cursor.Position{
		Partition: r.Partition,
		Offset:    r.Offset,
		UpdatedAt: r.LastUpdated,
	}
}

// Max returns the position with the greater offset, preferring stored when
// the offsets are equal.
func Max(stored, pos cursor.Position) cursor.Position {
	if pos.Offset > stored.Offset {
		return pos
	}
	return stored
}
