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

package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/matryer/is"
)

func TestHub_AppendFetch(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	h := New(2)
	for i := range 5 {
		msg, err := h.Append(1, message.Message{
			DeviceID:   "dev",
			Body:       []byte{byte(i)},
			Properties: map[string]string{"messageType": "temperature"},
		})
		is.NoErr(err)
		is.Equal(msg.Offset, int64(i))
		is.Equal(msg.SchemaTag, "temperature")
	}

	got, err := h.Fetch(ctx, 1, source.AtOffset(2), 2)
	is.NoErr(err)
	is.Equal(len(got), 2)
	is.Equal(got[0].Offset, int64(2))
	is.Equal(got[1].Offset, int64(3))

	got, err = h.Fetch(ctx, 1, source.AtOffset(10), 2)
	is.NoErr(err)
	is.Equal(len(got), 0)

	got, err = h.Fetch(ctx, 0, source.AtOffset(0), 2)
	is.NoErr(err)
	is.Equal(len(got), 0)

	partitions, err := h.ListPartitions(ctx)
	is.NoErr(err)
	is.Equal(partitions, []int{0, 1})
}

func TestHub_FetchByTime(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := New(1)
	for i := range 4 {
		_, err := h.Append(0, message.Message{Timestamp: base.Add(time.Duration(i) * time.Minute)})
		is.NoErr(err)
	}

	got, err := h.Fetch(ctx, 0, source.AtTime(base.Add(90*time.Second)), 10)
	is.NoErr(err)
	is.Equal(len(got), 2)
	is.Equal(got[0].Offset, int64(2))
}

func TestHub_UnknownPartition(t *testing.T) {
	is := is.New(t)

	h := New(1)
	_, err := h.Append(3, message.Message{})
	is.True(cerrors.Is(err, source.ErrUnknownPartition))

	_, err = h.Fetch(context.Background(), 3, source.AtOffset(0), 1)
	is.True(cerrors.Is(err, source.ErrUnknownPartition))
}
