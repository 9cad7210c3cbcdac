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

package sink_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	ckptinmemory "github.com/conduitio/hubflow/pkg/checkpoint/inmemory"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/pipeline"
	"github.com/conduitio/hubflow/pkg/sink"
	"github.com/conduitio/hubflow/pkg/sink/mock"
	"github.com/matryer/is"
	"go.uber.org/mock/gomock"
)

func reading(partition int, offset int64, value string) message.Message {
	return message.Message{
		Partition: partition,
		Offset:    offset,
		DeviceID:  "livingRoom",
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Body:      []byte(fmt.Sprintf(`{"value":%s}`, value)),
		SchemaTag: "temperature",
	}
}

func newCheckpointer(t *testing.T, store checkpoint.Store) *checkpoint.Checkpointer {
	return checkpoint.NewCheckpointer(store, log.Test(t), checkpoint.RetryConfig{
		MinDelay:   time.Millisecond,
		MaxDelay:   time.Millisecond,
		Factor:     2,
		MaxRetries: 1,
	})
}

func storedOffset(ctx context.Context, is *is.I, store checkpoint.Store, partition int) int64 {
	pos, err := store.Load(ctx, partition)
	is.NoErr(err)
	return pos.Offset
}

func TestSink_DeliveryFailurePinsCheckpoint(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	store := ckptinmemory.New()
	forwarder := mock.NewForwarder(ctrl)
	p, err := pipeline.New[pipeline.Reading](pipeline.ParseReading())
	is.NoErr(err)

	s, err := sink.New[pipeline.Reading](
		sink.NewForward[pipeline.Reading](forwarder),
		newCheckpointer(t, store),
		sink.Options{SavePosition: true, CheckpointEvery: 1},
		log.Test(t),
	)
	is.NoErr(err)

	deliveryErr := cerrors.New("broker unavailable")
	gomock.InOrder(
		forwarder.EXPECT().Forward(gomock.Any(), reading(0, 48, "20")).Return(nil),
		forwarder.EXPECT().Forward(gomock.Any(), reading(0, 49, "21")).Return(nil),
		forwarder.EXPECT().Forward(gomock.Any(), reading(0, 50, "22")).Return(deliveryErr),
		forwarder.EXPECT().Forward(gomock.Any(), reading(0, 51, "23")).Return(nil),
	)

	is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(0, 48, "20"))))
	is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(0, 49, "21"))))
	is.Equal(storedOffset(ctx, is, store, 0), int64(49))

	err = s.Consume(ctx, p.Apply(ctx, reading(0, 50, "22")))
	is.True(cerrors.Is(err, sink.ErrSinkDelivery))
	is.True(cerrors.Is(err, deliveryErr))

	// later messages are delivered, but the checkpoint does not move
	is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(0, 51, "23"))))
	is.NoErr(s.Flush(ctx))
	is.Equal(storedOffset(ctx, is, store, 0), int64(49))

	// a new sink resumes after the checkpoint and redelivers 50
	pos, err := store.Load(ctx, 0)
	is.NoErr(err)
	is.Equal(pos.Next(), int64(50))

	s, err = sink.New[pipeline.Reading](
		sink.NewForward[pipeline.Reading](forwarder),
		newCheckpointer(t, store),
		sink.Options{SavePosition: true, CheckpointEvery: 1},
		log.Test(t),
	)
	is.NoErr(err)
	s.Init(pos)

	forwarder.EXPECT().Forward(gomock.Any(), reading(0, 50, "22")).Return(nil)
	is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(0, 50, "22"))))
	is.Equal(storedOffset(ctx, is, store, 0), int64(50))
}

func TestSink_DeliveryFailureOnlyPinsPartition(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	store := ckptinmemory.New()
	forwarder := mock.NewForwarder(ctrl)
	p, err := pipeline.New[pipeline.Reading](pipeline.ParseReading())
	is.NoErr(err)

	s, err := sink.New[pipeline.Reading](
		sink.NewForward[pipeline.Reading](forwarder),
		newCheckpointer(t, store),
		sink.Options{SavePosition: true, CheckpointEvery: 1},
		log.Test(t),
	)
	is.NoErr(err)

	forwarder.EXPECT().Forward(gomock.Any(), reading(0, 0, "1")).Return(cerrors.New("boom"))
	forwarder.EXPECT().Forward(gomock.Any(), reading(1, 0, "1")).Return(nil)
	forwarder.EXPECT().Forward(gomock.Any(), reading(1, 1, "1")).Return(nil)

	is.True(cerrors.Is(s.Consume(ctx, p.Apply(ctx, reading(0, 0, "1"))), sink.ErrSinkDelivery))
	is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(1, 0, "1"))))
	is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(1, 1, "1"))))

	_, err = store.Load(ctx, 0)
	is.True(cerrors.Is(err, checkpoint.ErrNotFound))
	is.Equal(storedOffset(ctx, is, store, 1), int64(1))
}

func TestSink_ThresholdFilterAdvancesCheckpoint(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	store := ckptinmemory.New()
	sender := mock.NewCommandSender(ctrl)
	p, err := pipeline.New[pipeline.Reading](
		pipeline.ParseReading(),
		pipeline.Threshold(pipeline.Condition{Op: pipeline.OpGreater, Value: 100}),
	)
	is.NoErr(err)

	s, err := sink.New[pipeline.Reading](
		sink.NewCommand[pipeline.Reading](sender, "reboot", nil),
		newCheckpointer(t, store),
		sink.Options{SavePosition: true, CheckpointEvery: 32},
		log.Test(t),
	)
	is.NoErr(err)

	sender.EXPECT().Send(gomock.Any(), "livingRoom", "reboot", nil).Return(nil).Times(2)

	for i, v := range []string{"50", "150", "90", "200"} {
		is.NoErr(s.Consume(ctx, p.Apply(ctx, reading(0, int64(i), v))))
	}
	is.Equal(s.Positions()[0].Offset, int64(3))

	// the checkpoint is only written every 32 messages
	_, err = store.Load(ctx, 0)
	is.True(cerrors.Is(err, checkpoint.ErrNotFound))

	is.NoErr(s.Flush(ctx))
	is.Equal(storedOffset(ctx, is, store, 0), int64(3))
}

func TestSink_ParseFailureAdvancesCheckpoint(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	store := ckptinmemory.New()
	forwarder := mock.NewForwarder(ctrl)
	p, err := pipeline.New[pipeline.Reading](pipeline.ParseReading())
	is.NoErr(err)

	s, err := sink.New[pipeline.Reading](
		sink.NewForward[pipeline.Reading](forwarder),
		newCheckpointer(t, store),
		sink.Options{SavePosition: true, CheckpointEvery: 1},
		log.Test(t),
	)
	is.NoErr(err)

	res := p.Apply(ctx, reading(0, 7, `"not a number"`))
	is.Equal(res.Outcome, pipeline.OutcomeSkip)
	is.Equal(res.Reason, pipeline.ReasonParse)

	is.NoErr(s.Consume(ctx, res))
	is.Equal(storedOffset(ctx, is, store, 0), int64(7))
}

func TestSink_ErrorResultNotAcknowledged(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := ckptinmemory.New()
	s, err := sink.New[pipeline.Reading](
		sink.NewCommand[pipeline.Reading](sink.NewLogSender(log.Test(t)), "reboot", nil),
		newCheckpointer(t, store),
		sink.Options{SavePosition: true, CheckpointEvery: 1},
		log.Test(t),
	)
	is.NoErr(err)

	stageErr := cerrors.New("lookup failed")
	err = s.Consume(ctx, pipeline.ErrorResult[pipeline.Reading](reading(0, 3, "1"), "enrich", stageErr))
	is.True(cerrors.Is(err, stageErr))

	_, err = store.Load(ctx, 0)
	is.True(cerrors.Is(err, checkpoint.ErrNotFound))
	is.Equal(len(s.Positions()), 0)
}

func TestSink_OutOfOrderAdvance(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s, err := sink.New[pipeline.Reading](
		sink.NewCommand[pipeline.Reading](sink.NewLogSender(log.Test(t)), "reboot", nil),
		nil,
		sink.Options{},
		log.Test(t),
	)
	is.NoErr(err)
	s.Init(cursor.Position{Partition: 0, Offset: 10})

	skip := pipeline.SkipResult[pipeline.Reading](reading(0, 10, "1"), "schema-tag", "filtered:schema-tag", nil)
	err = s.Consume(ctx, skip)
	is.True(cerrors.Is(err, cursor.ErrOutOfOrderAdvance))
	is.True(cerrors.IsFatalError(err))
}

func TestSink_WithoutSavePosition(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s, err := sink.New[pipeline.Reading](
		sink.NewCommand[pipeline.Reading](sink.NewLogSender(log.Test(t)), "reboot", nil),
		nil,
		sink.Options{CheckpointEvery: 1},
		log.Test(t),
	)
	is.NoErr(err)

	skip := pipeline.SkipResult[pipeline.Reading](reading(2, 4, "1"), "schema-tag", "filtered:schema-tag", nil)
	is.NoErr(s.Consume(ctx, skip))
	is.NoErr(s.Flush(ctx))
	is.Equal(len(s.Positions()), 1)
	is.Equal(s.Positions()[0].Partition, 2)
	is.Equal(s.Positions()[0].Offset, int64(4))
}

func TestSink_SavePositionRequiresCheckpointer(t *testing.T) {
	is := is.New(t)

	_, err := sink.New[pipeline.Reading](
		sink.NewCommand[pipeline.Reading](sink.NewLogSender(log.Nop()), "reboot", nil),
		nil,
		sink.Options{SavePosition: true},
		log.Nop(),
	)
	is.True(err != nil)
}
