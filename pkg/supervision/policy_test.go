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

package supervision

import (
	"context"
	"testing"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/pipeline"
	"github.com/conduitio/hubflow/pkg/sink"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/matryer/is"
)

func wrap(err error) error {
	return cerrors.Errorf("partition 0 offset 1: %w", err)
}

func TestPolicy_DefaultDecisions(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Decision
	}{
		{"parse error", wrap(pipeline.ErrParse), Resume},
		{"transform error", cerrors.New("lookup failed"), Resume},
		{"sink delivery", wrap(sink.ErrSinkDelivery), Resume},
		{"out of order advance", cerrors.FatalError(wrap(cursor.ErrOutOfOrderAdvance)), Halt},
		{"checkpoint write", wrap(checkpoint.ErrCheckpointWrite), Halt},
		{"source pull", wrap(source.ErrSourcePull), Halt},
		{"fatal", cerrors.FatalError(cerrors.New("boom")), Halt},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			p := NewPolicy(Config{}, log.Test(t))

			got := p.Decide(context.Background(), Failure{Partition: 0, Offset: 1, Err: tc.err})
			is.Equal(got, tc.want)
			if tc.want == Halt {
				is.Equal(p.State(), StateHalted)
				is.True(cerrors.Is(p.Err(), tc.err))
			} else {
				is.Equal(p.State(), StateRunning)
				is.NoErr(p.Err())
			}
		})
	}
}

func TestPolicy_HaltIsFinal(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	p := NewPolicy(Config{}, log.Test(t))

	fatal := cerrors.FatalError(cerrors.New("boom"))
	is.Equal(p.Decide(ctx, Failure{Err: fatal}), Halt)
	is.Equal(p.Decide(ctx, Failure{Err: wrap(pipeline.ErrParse)}), Halt)

	select {
	case <-p.Halted():
	default:
		is.Fail() // expected halted channel to be closed
	}
	is.True(cerrors.Is(p.Err(), fatal)) // the first cause is kept
}

func TestPolicy_HaltOnSinkFailures(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	p := NewPolicy(Config{
		HaltOnSinkFailures: true,
		WindowSize:         3,
		WindowThreshold:    1,
	}, log.Test(t))

	failure := func(partition int) Failure {
		return Failure{Partition: partition, Err: wrap(sink.ErrSinkDelivery)}
	}

	is.Equal(p.Decide(ctx, failure(0)), Resume)
	p.Delivered(0)
	// failures are counted per partition
	is.Equal(p.Decide(ctx, failure(1)), Resume)
	is.Equal(p.State(), StateRunning)

	is.Equal(p.Decide(ctx, failure(0)), Halt)
	is.True(cerrors.Is(p.Err(), sink.ErrSinkDelivery))
}
