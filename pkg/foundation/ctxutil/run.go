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

package ctxutil

import (
	"context"

	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/rs/zerolog"
)

// runIDCtxKey is used as the key when saving the run ID in a context.
type runIDCtxKey struct{}

// ContextWithRunID wraps ctx and returns a context that contains the ID of
// the pipeline run. A new ID is assigned every time the pipeline is started
// or restarted after a halt.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDCtxKey{}, runID)
}

// RunIDFromContext fetches the run ID from the context. If the context does
// not contain a run ID it returns an empty string.
func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDCtxKey{}).(string)
	return runID
}

// RunIDLogCtxHook fetches the run ID from the context and if it exists it
// adds it to the log output.
type RunIDLogCtxHook struct{}

// Run executes the log hook.
func (h RunIDLogCtxHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		e.Str(log.RunIDField, runID)
	}
}
