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

package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

type partitionCtxKey struct{}

type partitionHook struct{}

func (partitionHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if p, ok := e.GetCtx().Value(partitionCtxKey{}).(int); ok {
		e.Int(PartitionField, p)
	}
}

func TestCtxLogger_Levels(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		logfunc func(CtxLogger)
		want    string
	}{{
		name:    "trace one-field",
		logfunc: func(l CtxLogger) { l.Trace(ctx).Str("foo", "bar").Msg("") },
		want:    `{"level":"trace","foo":"bar"}` + "\n",
	}, {
		name:    "debug two-field",
		logfunc: func(l CtxLogger) { l.Debug(ctx).Str("foo", "bar").Int("n", 123).Msg("") },
		want:    `{"level":"debug","foo":"bar","n":123}` + "\n",
	}, {
		name:    "info message",
		logfunc: func(l CtxLogger) { l.Info(ctx).Msg("hello") },
		want:    `{"level":"info","message":"hello"}` + "\n",
	}, {
		name:    "warn one-field",
		logfunc: func(l CtxLogger) { l.Warn(ctx).Int64(OffsetField, 42).Msg("") },
		want:    `{"level":"warn","offset":42}` + "\n",
	}, {
		name:    "error empty",
		logfunc: func(l CtxLogger) { l.Error(ctx).Msg("") },
		want:    `{"level":"error"}` + "\n",
	}, {
		name:    "err nil is info",
		logfunc: func(l CtxLogger) { l.Err(ctx, nil).Msg("") },
		want:    `{"level":"info"}` + "\n",
	}, {
		name:    "with level",
		logfunc: func(l CtxLogger) { l.WithLevel(ctx, zerolog.WarnLevel).Msg("") },
		want:    `{"level":"warn"}` + "\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			var out bytes.Buffer
			tc.logfunc(New(zerolog.New(&out)))
			is.Equal(tc.want, out.String())
		})
	}
}

func TestCtxLogger_WithComponent(t *testing.T) {
	is := is.New(t)
	var out bytes.Buffer

	logger := New(zerolog.New(&out)).WithComponent("sink.Sink")
	logger.Info(context.Background()).Msg("")
	is.Equal(`{"level":"info","component":"sink.Sink"}`+"\n", out.String())

	out.Reset()
	logger.WithComponent("").Info(context.Background()).Msg("")
	is.Equal(`{"level":"info"}`+"\n", out.String())
}

func TestCtxLogger_Hook(t *testing.T) {
	is := is.New(t)
	var out bytes.Buffer

	logger := New(zerolog.New(&out)).Hook(partitionHook{})

	ctx := context.WithValue(context.Background(), partitionCtxKey{}, 3)
	logger.Info(ctx).Msg("")
	is.Equal(`{"level":"info","partition":3}`+"\n", out.String())

	out.Reset()
	logger.Info(context.Background()).Msg("")
	is.Equal(`{"level":"info"}`+"\n", out.String())
}

func TestParseFormat(t *testing.T) {
	is := is.New(t)

	f, err := ParseFormat("json")
	is.NoErr(err)
	is.Equal(FormatJSON, f)

	f, err = ParseFormat("cli")
	is.NoErr(err)
	is.Equal(FormatCLI, f)

	_, err = ParseFormat("xml")
	is.True(err != nil)
}
