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

package lifecycle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	ckptinmemory "github.com/conduitio/hubflow/pkg/checkpoint/inmemory"
	ckptmock "github.com/conduitio/hubflow/pkg/checkpoint/mock"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/hub/inmemory"
	"github.com/conduitio/hubflow/pkg/lifecycle"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/pipeline"
	"github.com/conduitio/hubflow/pkg/sink"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/conduitio/hubflow/pkg/supervision"
	"github.com/matryer/is"
	"go.uber.org/mock/gomock"
)

type effectFunc func(context.Context, pipeline.Record[pipeline.Reading]) error

func (f effectFunc) Type() string { return "test" }

func (f effectFunc) Apply(ctx context.Context, rec pipeline.Record[pipeline.Reading]) error {
	return f(ctx, rec)
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func appendReadings(is *is.I, hub *inmemory.Hub, n int) {
	for i := range n {
		_, err := hub.Append(0, message.Message{
			DeviceID:  "livingRoom",
			Timestamp: epoch.Add(time.Duration(i) * time.Second),
			Body:      []byte(fmt.Sprintf(`{"value":%d}`, 15+i)),
			SchemaTag: "temperature",
		})
		is.NoErr(err)
	}
}

func testConfig() lifecycle.Config {
	return lifecycle.Config{
		Source: source.Options{
			FromTime:     epoch.Add(-time.Hour),
			SavePosition: true,
			PollInterval: 5 * time.Millisecond,
		},
		ErrorRecovery: lifecycle.ErrorRecoveryConfig{
			MinDelay:      time.Millisecond,
			MaxDelay:      time.Millisecond,
			BackoffFactor: 2,
		},
		FlushTimeout: time.Second,
	}
}

func newService(
	t *testing.T,
	hub source.Hub,
	store checkpoint.Store,
	effect sink.Effect[pipeline.Reading],
	cfg lifecycle.Config,
) *lifecycle.Service[pipeline.Reading] {
	is := is.New(t)
	ckpt := checkpoint.NewCheckpointer(store, log.Test(t), checkpoint.RetryConfig{
		MinDelay:   time.Millisecond,
		MaxDelay:   time.Millisecond,
		Factor:     2,
		MaxRetries: 0,
	})
	p, err := pipeline.New[pipeline.Reading](pipeline.ParseReading())
	is.NoErr(err)
	return lifecycle.NewService[pipeline.Reading](
		log.Test(t),
		source.New(hub, ckpt, log.Test(t)),
		p,
		effect,
		ckpt,
		cfg,
	)
}

// recordUntil returns an effect that records delivered offsets and cancels
// the context once offset last was delivered.
func recordUntil(seen *[]int64, last int64, cancel context.CancelFunc) effectFunc {
	return func(_ context.Context, rec pipeline.Record[pipeline.Reading]) error {
		*seen = append(*seen, rec.Message.Offset)
		if rec.Message.Offset == last {
			cancel()
		}
		return nil
	}
}

func TestService_Run_GracefulStopFlushesCheckpoint(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub := inmemory.New(1)
	appendReadings(is, hub, 10)
	store := ckptinmemory.New()

	var seen []int64
	svc := newService(t, hub, store, recordUntil(&seen, 9, cancel), testConfig())

	err := svc.Run(ctx)
	is.NoErr(err)
	is.Equal(seen, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	pos, err := store.Load(context.Background(), 0)
	is.NoErr(err)
	is.Equal(pos.Offset, int64(9))
}

func TestService_Run_RestartResumesWithoutGaps(t *testing.T) {
	is := is.New(t)

	hub := inmemory.New(1)
	appendReadings(is, hub, 5)
	store := ckptinmemory.New()

	var seen []int64
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	is.NoErr(newService(t, hub, store, recordUntil(&seen, 4, cancel), testConfig()).Run(ctx))

	appendReadings(is, hub, 5)
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	is.NoErr(newService(t, hub, store, recordUntil(&seen, 9, cancel), testConfig()).Run(ctx))

	is.Equal(seen, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
}

func TestService_Run_HaltOnSinkFailures(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub := inmemory.New(1)
	appendReadings(is, hub, 10)
	store := ckptinmemory.New()

	deliveryErr := cerrors.New("display unavailable")
	effect := effectFunc(func(_ context.Context, rec pipeline.Record[pipeline.Reading]) error {
		if rec.Message.Offset == 3 {
			return deliveryErr
		}
		return nil
	})

	cfg := testConfig()
	cfg.Sink.CheckpointEvery = 1
	cfg.Supervision = supervision.Config{HaltOnSinkFailures: true, WindowSize: 1}

	var events []lifecycle.FailureEvent
	svc := newService(t, hub, store, effect, cfg)
	svc.OnFailure(func(e lifecycle.FailureEvent) { events = append(events, e) })

	err := svc.Run(ctx)
	var haltErr *lifecycle.HaltError
	is.True(cerrors.As(err, &haltErr))
	is.True(cerrors.Is(err, sink.ErrSinkDelivery))
	is.True(cerrors.Is(err, deliveryErr))
	is.Equal(len(events), 1)

	pos, err := store.Load(context.Background(), 0)
	is.NoErr(err)
	is.Equal(pos.Offset, int64(2))
}

func TestService_Run_ErrorRecovery(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub := inmemory.New(1)
	appendReadings(is, hub, 6)
	store := ckptinmemory.New()

	var seen []int64
	failed := false
	effect := effectFunc(func(_ context.Context, rec pipeline.Record[pipeline.Reading]) error {
		seen = append(seen, rec.Message.Offset)
		if rec.Message.Offset == 3 && !failed {
			failed = true
			return cerrors.New("display unavailable")
		}
		if rec.Message.Offset == 5 {
			cancel()
		}
		return nil
	})

	cfg := testConfig()
	cfg.Sink.CheckpointEvery = 1
	cfg.Supervision = supervision.Config{HaltOnSinkFailures: true, WindowSize: 1}
	cfg.ErrorRecovery.MaxRetries = 1

	var events []lifecycle.FailureEvent
	svc := newService(t, hub, store, effect, cfg)
	svc.OnFailure(func(e lifecycle.FailureEvent) { events = append(events, e) })

	is.NoErr(svc.Run(ctx))
	is.Equal(seen, []int64{0, 1, 2, 3, 3, 4, 5})
	is.Equal(len(events), 1)

	pos, err := store.Load(context.Background(), 0)
	is.NoErr(err)
	is.Equal(pos.Offset, int64(5))
}

func TestService_Run_FatalHaltIsNotRecovered(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctrl := gomock.NewController(t)

	hub := inmemory.New(1)
	appendReadings(is, hub, 3)

	store := ckptmock.NewStore(ctrl)
	store.EXPECT().Load(gomock.Any(), 0).Return(cursor.Position{}, checkpoint.ErrNotFound)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(cursor.Position{}, cerrors.New("disk full")).AnyTimes()

	cfg := testConfig()
	cfg.Sink.CheckpointEvery = 1
	cfg.ErrorRecovery.MaxRetries = 3

	var events []lifecycle.FailureEvent
	svc := newService(t, hub, store, effectFunc(func(context.Context, pipeline.Record[pipeline.Reading]) error {
		return nil
	}), cfg)
	svc.OnFailure(func(e lifecycle.FailureEvent) { events = append(events, e) })

	err := svc.Run(ctx)
	is.True(cerrors.Is(err, checkpoint.ErrCheckpointWrite))
	is.True(cerrors.IsFatalError(err))
	is.Equal(len(events), 1)
}

func TestService_Run_UnknownPartition(t *testing.T) {
	is := is.New(t)

	cfg := testConfig()
	cfg.Source.Partitions = []int{5}

	svc := newService(t, inmemory.New(1), ckptinmemory.New(), effectFunc(func(context.Context, pipeline.Record[pipeline.Reading]) error {
		return nil
	}), cfg)

	err := svc.Run(context.Background())
	is.True(cerrors.Is(err, source.ErrUnknownPartition))
	var haltErr *lifecycle.HaltError
	is.True(!cerrors.As(err, &haltErr))
}

func TestService_Stop(t *testing.T) {
	is := is.New(t)

	hub := inmemory.New(1)
	svc := newService(t, hub, ckptinmemory.New(), effectFunc(func(context.Context, pipeline.Record[pipeline.Reading]) error {
		return nil
	}), testConfig())

	is.NoErr(svc.Start(context.Background()))
	is.True(cerrors.Is(svc.Start(context.Background()), lifecycle.ErrServiceRunning))

	svc.Stop()
	is.NoErr(svc.Wait())
}
