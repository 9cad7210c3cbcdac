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

package sink

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/pipeline"
	"github.com/conduitio/hubflow/pkg/sink/mock"
	"github.com/matryer/is"
	"go.uber.org/mock/gomock"
)

func TestDisplay_Alert(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	var buf bytes.Buffer
	d := NewDisplay(NewWriter(&buf), DisplayAlert, "temperature", 18)

	for _, v := range []float64{17.5, 18, 23.1} {
		err := d.Apply(ctx, pipeline.Record[pipeline.Reading]{
			Payload: pipeline.Reading{Value: v, DeviceID: "livingRoom"},
		})
		is.NoErr(err)
	}

	is.Equal(buf.String(), ""+
		"Device: livingRoom: temperature too LOW: 17.5\n"+
		"Device: livingRoom: temperature too LOW: 18\n"+
		"Device: livingRoom: temperature too HIGH: 23.1\n")
}

func TestDisplay_Raw(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	var buf bytes.Buffer
	d := NewDisplay(NewWriter(&buf), DisplayRaw, "", 0)

	err := d.Apply(ctx, pipeline.Record[pipeline.Reading]{
		Payload: pipeline.Reading{
			Value:    150,
			Time:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			DeviceID: "kitchen",
		},
	})
	is.NoErr(err)
	is.Equal(buf.String(), `{"deviceId":"kitchen","value":150,"time":"2024-06-01T12:00:00Z"}`+"\n")
}

func TestDisplay_WriteError(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	w := mock.NewWriter(ctrl)
	wantErr := cerrors.New("closed")
	w.EXPECT().Write("Device: d: temperature too HIGH: 30").Return(wantErr)

	d := NewDisplay(w, "", "temperature", 18)
	err := d.Apply(ctx, pipeline.Record[pipeline.Reading]{
		Payload: pipeline.Reading{Value: 30, DeviceID: "d"},
	})
	is.True(cerrors.Is(err, wantErr))
}
