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

// Package cursor tracks the acknowledged read position of a partition.
package cursor

import (
	"sync"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

// NoOffset is the offset of a cursor that has not acknowledged any message.
const NoOffset int64 = -1

// ErrOutOfOrderAdvance is returned when a cursor is advanced to an offset that
// is not greater than its current offset. It signals a broken ordering
// invariant and is always fatal.
var ErrOutOfOrderAdvance = cerrors.New("out of order advance")

// Position is the acknowledged position of a partition.
type Position struct {
	Partition int
	// Offset is the last acknowledged offset, NoOffset if none.
	Offset int64
	// UpdatedAt is the time the position was last advanced or persisted.
	UpdatedAt time.Time
}

// Next returns the offset from which reading should resume.
func (p Position) Next() int64 {
	return p.Offset + 1
}

// Cursor tracks the acknowledged position of a single partition and whether
// that position has been persisted. It is written by a single goroutine, but
// can be read concurrently.
type Cursor struct {
	mu sync.RWMutex

	pos   Position
	saved Position
	// pending is the number of advances since the last save.
	pending int

	now func() time.Time
}

// New returns a cursor for the partition starting at the supplied position.
// The starting position is considered persisted.
func New(start Position) *Cursor {
	return &Cursor{
		pos:   start,
		saved: start,
		now:   time.Now,
	}
}

// Current returns the current position.
func (c *Cursor) Current() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

// Advance moves the cursor to offset. The offset needs to be greater than the
// current offset, otherwise a fatal ErrOutOfOrderAdvance is returned and the
// cursor is left unchanged.
func (c *Cursor) Advance(offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset <= c.pos.Offset {
		return cerrors.FatalError(cerrors.Errorf(
			"partition %d: could not advance cursor from %d to %d: %w",
			c.pos.Partition, c.pos.Offset, offset, ErrOutOfOrderAdvance,
		))
	}
	c.pos.Offset = offset
	c.pos.UpdatedAt = c.now()
	c.pending++
	return nil
}

// Snapshot returns the position that should be persisted.
func (c *Cursor) Snapshot() Position {
	return c.Current()
}

// MarkSaved records that pos was persisted. Saving an older position than the
// one already recorded is ignored.
func (c *Cursor) MarkSaved(pos Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pos.Offset < c.saved.Offset {
		return
	}
	c.saved = pos
	if pos.Offset >= c.pos.Offset {
		c.pending = 0
	}
}

// Dirty returns true if the cursor advanced since it was last saved.
func (c *Cursor) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos.Offset > c.saved.Offset
}

// Pending returns the number of advances since the last save.
func (c *Cursor) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// Saved returns the last persisted position.
func (c *Cursor) Saved() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saved
}

// SavedAt returns the time of the last persisted position.
func (c *Cursor) SavedAt() time.Time {
	return c.Saved().UpdatedAt
}
