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

package ctxutil

import (
	"context"

	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/rs/zerolog"
)

// messageCtxKey is used as the key when saving the message coordinates in a
// context.
type messageCtxKey struct{}

type messageCoordinates struct {
	partition int
	offset    int64
}

// ContextWithMessage wraps ctx and returns a context that contains the
// partition and offset of the message that is currently being processed.
func ContextWithMessage(ctx context.Context, partition int, offset int64) context.Context {
	return context.WithValue(ctx, messageCtxKey{}, messageCoordinates{
		partition: partition,
		offset:    offset,
	})
}

// MessageFromContext fetches the message partition and offset from the
// context. The last return value is false if the context does not contain
// them.
func MessageFromContext(ctx context.Context) (int, int64, bool) {
	mc, ok := ctx.Value(messageCtxKey{}).(messageCoordinates)
	if !ok {
		return 0, 0, false
	}
	return mc.partition, mc.offset, true
}

// MessageLogCtxHook fetches the message coordinates from the context and, if
// they exist, adds them to the log output.
type MessageLogCtxHook struct{}

// Run executes the log hook.
func (h MessageLogCtxHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	partition, offset, ok := MessageFromContext(ctx)
	if ok {
		e.Int(log.PartitionField, partition).Int64(log.OffsetField, offset)
	}
}
