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
	"context"
	"testing"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = cerrors.GetStackTrace
}

// CtxLogger wraps a zerolog.Logger. Every event is bound to a context so hooks
// can enrich it, for example with the partition of the message in flight.
//
// Events returned by CtxLogger are only written once Msg or Send is called.
type CtxLogger struct {
	zerolog.Logger
	component string
}

func New(logger zerolog.Logger) CtxLogger {
	return CtxLogger{Logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() CtxLogger {
	return New(zerolog.Nop())
}

// Test returns a logger that writes to t.Log.
func Test(t testing.TB) CtxLogger {
	return New(zerolog.New(zerolog.NewTestWriter(t)))
}

// InitLogger builds the process logger writing to stdout in format f.
func InitLogger(level zerolog.Level, f Format) CtxLogger {
	return New(zerolog.New(GetWriter(f)).
		Level(level).
		With().Timestamp().Stack().
		Logger())
}

// Hook returns a copy of the logger that runs hooks on every event.
func (l CtxLogger) Hook(hooks ...zerolog.Hook) CtxLogger {
	for _, h := range hooks {
		l.Logger = l.Logger.Hook(h)
	}
	return l
}

// WithComponent returns a copy of the logger that tags events with component.
// An empty component removes the tag.
func (l CtxLogger) WithComponent(component string) CtxLogger {
	l.component = component
	return l
}

func (l CtxLogger) Trace(ctx context.Context) *zerolog.Event { return l.event(ctx, l.Logger.Trace()) }
func (l CtxLogger) Debug(ctx context.Context) *zerolog.Event { return l.event(ctx, l.Logger.Debug()) }
func (l CtxLogger) Info(ctx context.Context) *zerolog.Event  { return l.event(ctx, l.Logger.Info()) }
func (l CtxLogger) Warn(ctx context.Context) *zerolog.Event  { return l.event(ctx, l.Logger.Warn()) }
func (l CtxLogger) Error(ctx context.Context) *zerolog.Event { return l.event(ctx, l.Logger.Error()) }

// Err logs at error level with err attached, or at info level if err is nil.
func (l CtxLogger) Err(ctx context.Context, err error) *zerolog.Event {
	return l.event(ctx, l.Logger.Err(err))
}

// WithLevel never exits or panics, not even for the fatal and panic levels.
func (l CtxLogger) WithLevel(ctx context.Context, level zerolog.Level) *zerolog.Event {
	return l.event(ctx, l.Logger.WithLevel(level))
}

func (l CtxLogger) event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	e = e.Ctx(ctx)
	if l.component != "" {
		e = e.Str(ComponentField, l.component)
	}
	return e
}
