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
	"context"

	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/pipeline"
)

// Forwarder delivers a message to another system.
type Forwarder interface {
	Forward(ctx context.Context, msg message.Message) error
}

// Forward is an effect that forwards the message a record was produced from.
type Forward[T any] struct {
	forwarder Forwarder
}

func NewForward[T any](f Forwarder) *Forward[T] {
	return &Forward[T]{forwarder: f}
}

func (f *Forward[T]) Type() string { return "forward" }

func (f *Forward[T]) Apply(ctx context.Context, rec pipeline.Record[T]) error {
	return f.forwarder.Forward(ctx, rec.Message)
}
