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

package checkpoint

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/matryer/is"
)

// AcceptanceTest is the acceptance test that all implementations of Store
// should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestStore(t *testing.T) {
//	    s = NewStore()
//	    checkpoint.AcceptanceTest(t, s)
//	}
func AcceptanceTest(t *testing.T, s Store) {
	testLoadNotFound(t, s)
	testSaveLoad(t, s)
	testSaveNeverRegresses(t, s)
	testSaveIdempotent(t, s)
	testReset(t, s)
	testList(t, s)
	testConcurrency(t, s)
}

func testLoadNotFound(t *testing.T, s Store) {
	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()

		_, err := s.Load(ctx, 1000)
		is.True(cerrors.Is(err, ErrNotFound)) // expected error for missing checkpoint
	})
}

func testSaveLoad(t *testing.T, s Store) {
	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()
		t.Cleanup(func() { _ = s.Reset(ctx, 1) })

		want := position(1, 102)
		got, err := s.Save(ctx, want)
		is.NoErr(err)
		assertPosition(is, got, want)

		got, err = s.Load(ctx, 1)
		is.NoErr(err)
		assertPosition(is, got, want)
	})
}

func testSaveNeverRegresses(t *testing.T, s Store) {
	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()
		t.Cleanup(func() { _ = s.Reset(ctx, 2) })

		want := position(2, 50)
		_, err := s.Save(ctx, want)
		is.NoErr(err)

		got, err := s.Save(ctx, position(2, 10))
		is.NoErr(err)
		assertPosition(is, got, want) // older offset must not overwrite newer one

		got, err = s.Load(ctx, 2)
		is.NoErr(err)
		assertPosition(is, got, want)

		want = position(2, 51)
		got, err = s.Save(ctx, want)
		is.NoErr(err)
		assertPosition(is, got, want)
	})
}

func testSaveIdempotent(t *testing.T, s Store) {
	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()
		t.Cleanup(func() { _ = s.Reset(ctx, 3) })

		want := position(3, 7)
		for range 3 {
			got, err := s.Save(ctx, want)
			is.NoErr(err)
			assertPosition(is, got, want)
		}
	})
}

func testReset(t *testing.T, s Store) {
	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()

		_, err := s.Save(ctx, position(4, 99))
		is.NoErr(err)

		err = s.Reset(ctx, 4)
		is.NoErr(err)

		_, err = s.Load(ctx, 4)
		is.True(cerrors.Is(err, ErrNotFound)) // expected checkpoint to be removed

		// a reset checkpoint can start over from a lower offset
		want := position(4, 3)
		got, err := s.Save(ctx, want)
		is.NoErr(err)
		assertPosition(is, got, want)

		is.NoErr(s.Reset(ctx, 4))
		is.NoErr(s.Reset(ctx, 4)) // resetting a missing checkpoint is not an error
	})
}

func testList(t *testing.T, s Store) {
	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()

		got, err := s.List(ctx)
		is.NoErr(err)
		is.Equal(len(got), 0) // expected no checkpoints

		want := []cursor.Position{position(0, 10), position(3, 30), position(12, 120)}
		for _, i := range []int{2, 0, 1} {
			_, err := s.Save(ctx, want[i])
			is.NoErr(err)
		}
		t.Cleanup(func() {
			for _, pos := range want {
				_ = s.Reset(ctx, pos.Partition)
			}
		})

		got, err = s.List(ctx)
		is.NoErr(err)
		is.Equal(len(got), len(want))
		for i := range want {
			assertPosition(is, got[i], want[i])
		}
	})
}

func testConcurrency(t *testing.T, s Store) {
	const (
		partitions = 4
		workers    = 10
		offsets    = 20
	)

	t.Run(testName(), func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()
		t.Cleanup(func() {
			for p := range partitions {
				_ = s.Reset(ctx, 100+p)
			}
		})

		var wg sync.WaitGroup
		errs := make([]error, partitions*workers)
		for p := range partitions {
			for w := range workers {
				wg.Add(1)
				go func(p, w int) {
					defer wg.Done()
					for o := range offsets {
						pos := position(100+p, int64(o*workers+w))
						stored, err := s.Save(ctx, pos)
						if err != nil {
							errs[p*workers+w] = cerrors.Errorf("expected no error when saving %v, got: %w", pos, err)
							return
						}
						if stored.Offset < pos.Offset {
							errs[p*workers+w] = cerrors.Errorf("expected stored offset >= %d, got %d", pos.Offset, stored.Offset)
							return
						}
					}
				}(p, w)
			}
		}
		wg.Wait()
		is.NoErr(cerrors.Join(errs...))

		for p := range partitions {
			got, err := s.Load(ctx, 100+p)
			is.NoErr(err)
			is.Equal(got.Offset, int64(offsets*workers-1)) // expected highest offset to win
		}
	})
}

func position(partition int, offset int64) cursor.Position {
	return cursor.Position{
		Partition: partition,
		Offset:    offset,
		// backends are allowed to store timestamps with microsecond precision
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func assertPosition(is *is.I, got, want cursor.Position) {
	is.Helper()
	is.Equal(got.Partition, want.Partition)
	is.Equal(got.Offset, want.Offset)
	is.True(got.UpdatedAt.Equal(want.UpdatedAt)) // timestamps differ
}

// testName returns the name of the acceptance test (function name).
func testName() string {
	//nolint:dogsled // not important in tests
	pc, _, _, _ := runtime.Caller(1)
	caller := runtime.FuncForPC(pc).Name()
	return caller[strings.LastIndex(caller, ".")+1:]
}
