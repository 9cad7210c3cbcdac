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

package cursor

import (
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/matryer/is"
)

func TestCursor_Advance(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := New(Position{Partition: 2, Offset: NoOffset})
	c.now = func() time.Time { return now }

	is.NoErr(c.Advance(0))
	is.NoErr(c.Advance(5)) // gaps are allowed

	is.Equal(c.Current(), Position{Partition: 2, Offset: 5, UpdatedAt: now})
	is.Equal(c.Pending(), 2)
	is.True(c.Dirty())
}

func TestCursor_Advance_OutOfOrder(t *testing.T) {
	testCases := []struct {
		name   string
		offset int64
	}{
		{name: "same offset", offset: 102},
		{name: "older offset", offset: 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			c := New(Position{Partition: 2, Offset: 102})
			err := c.Advance(tc.offset)
			is.True(cerrors.Is(err, ErrOutOfOrderAdvance))
			is.True(cerrors.IsFatalError(err))
			is.Equal(c.Current().Offset, int64(102)) // cursor must not change
			is.True(!c.Dirty())
		})
	}
}

func TestCursor_MarkSaved(t *testing.T) {
	is := is.New(t)

	c := New(Position{Partition: 0, Offset: 9})
	is.NoErr(c.Advance(10))
	is.NoErr(c.Advance(11))

	c.MarkSaved(Position{Partition: 0, Offset: 10})
	is.True(c.Dirty())
	is.Equal(c.Pending(), 2) // not everything was saved

	c.MarkSaved(c.Snapshot())
	is.True(!c.Dirty())
	is.Equal(c.Pending(), 0)

	c.MarkSaved(Position{Partition: 0, Offset: 3}) // ignored
	is.Equal(c.Saved().Offset, int64(11))
}

func TestPosition_Next(t *testing.T) {
	is := is.New(t)
	is.Equal(Position{Offset: 102}.Next(), int64(103))
	is.Equal(Position{Offset: NoOffset}.Next(), int64(0))
}
