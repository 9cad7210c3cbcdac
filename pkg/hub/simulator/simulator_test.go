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

package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/source"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
)

func newTestHub(t *testing.T, now time.Time) *Hub {
	is := is.New(t)
	h, err := New(Config{
		Devices: []Device{
			{ID: "livingRoom", Schema: SchemaTemperature},
			{Schema: SchemaHumidity},
		},
		Interval: time.Second,
		Seed:     42,
		Start:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	is.NoErr(err)
	h.now = func() time.Time { return now }
	return h
}

func TestHub_Fetch(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	h := newTestHub(t, time.Date(2024, 6, 1, 12, 0, 9, 0, time.UTC))

	msgs, err := h.Fetch(ctx, 0, source.AtOffset(0), 100)
	is.NoErr(err)
	is.Equal(len(msgs), 10) // readings 0..9 are available

	for i, msg := range msgs {
		is.Equal(msg.Offset, int64(i))
		is.Equal(msg.DeviceID, "livingRoom")
		is.Equal(msg.SchemaTag, SchemaTemperature)
		is.Equal(message.SchemaTagFromProperties(msg.Properties), SchemaTemperature)
		is.Equal(msg.Properties[message.PropertyContentType], "json")

		var body struct {
			Value float64   `json:"value"`
			Time  time.Time `json:"time"`
		}
		is.NoErr(json.Unmarshal(msg.Body, &body))
		is.True(body.Value >= -10 && body.Value <= 40)
		is.True(body.Time.Equal(msg.Timestamp))
	}

	msgs, err = h.Fetch(ctx, 0, source.AtOffset(8), 100)
	is.NoErr(err)
	is.Equal(len(msgs), 2)
	is.Equal(msgs[0].Offset, int64(8))
}

func TestHub_Fetch_Deterministic(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)

	got1, err := newTestHub(t, now).Fetch(ctx, 1, source.AtOffset(100), 50)
	is.NoErr(err)
	got2, err := newTestHub(t, now).Fetch(ctx, 1, source.AtOffset(100), 50)
	is.NoErr(err)

	if diff := cmp.Diff(got1, got2); diff != "" {
		t.Errorf("expected same readings (-first +second):\n%s", diff)
	}
	for _, msg := range got1 {
		var body struct {
			Value float64 `json:"value"`
		}
		is.NoErr(json.Unmarshal(msg.Body, &body))
		is.True(body.Value >= 40 && body.Value <= 100) // humidity range
		is.True(len(msg.DeviceID) == 36)                // generated uuid
	}
}

func TestHub_Fetch_ByTime(t *testing.T) {
	is := is.New(t)

	h := newTestHub(t, time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC))
	msgs, err := h.Fetch(context.Background(), 0, source.AtTime(time.Date(2024, 6, 1, 12, 0, 30, 500, time.UTC)), 3)
	is.NoErr(err)
	is.Equal(len(msgs), 3)
	is.Equal(msgs[0].Offset, int64(31))
}

func TestHub_Fetch_UnknownPartition(t *testing.T) {
	is := is.New(t)

	h := newTestHub(t, time.Now())
	_, err := h.Fetch(context.Background(), 2, source.AtOffset(0), 1)
	is.True(cerrors.Is(err, source.ErrUnknownPartition))
}

func TestParseDevices(t *testing.T) {
	testCases := []struct {
		in      string
		want    []Device
		wantErr bool
	}{{
		in:   "livingRoom:temperature, humidity",
		want: []Device{{ID: "livingRoom", Schema: SchemaTemperature}, {Schema: SchemaHumidity}},
	}, {
		in:      "kitchen:pressure",
		wantErr: true,
	}, {
		in:      " , ",
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			is := is.New(t)
			got, err := ParseDevices(tc.in)
			if tc.wantErr {
				is.True(err != nil)
				return
			}
			is.NoErr(err)
			is.Equal(got, tc.want)
		})
	}
}
