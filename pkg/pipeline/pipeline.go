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

// Package pipeline contains composable stages that filter and transform
// messages into typed records.
package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/conduitio/hubflow/pkg/message"
)

var (
	// ErrParse marks errors caused by a message that can not be decoded.
	// Messages failing with ErrParse are skipped instead of failing the
	// pipeline.
	ErrParse = cerrors.New("could not parse message")
	// ErrTypeMismatch is returned when a stage receives a value of an
	// unexpected type.
	ErrTypeMismatch = cerrors.New("type mismatch")
	// ErrStagePanic is returned when a stage panicked.
	ErrStagePanic = cerrors.New("stage panicked")
)

var messageType = reflect.TypeFor[message.Message]()

// Pipeline applies a fixed chain of stages to messages and produces records
// of type T.
type Pipeline[T any] struct {
	stages []Stage
}

// New composes the stages into a pipeline. The first stage receives the
// message itself, every following stage receives the output of the previous
// one and the output of the last stage needs to be assignable to T.
func New[T any](stages ...Stage) (*Pipeline[T], error) {
	prev := messageType
	for i, s := range stages {
		if s.apply == nil {
			return nil, cerrors.Errorf("stage %d is not initialized", i)
		}
		if !prev.AssignableTo(s.in) {
			return nil, cerrors.Errorf("stage %d (%s) expects %v, but receives %v: %w", i, s.name, s.in, prev, ErrTypeMismatch)
		}
		prev = s.out
	}
	if want := reflect.TypeFor[T](); !prev.AssignableTo(want) {
		return nil, cerrors.Errorf("pipeline produces %v, can not be used as %v: %w", prev, want, ErrTypeMismatch)
	}
	return &Pipeline[T]{stages: stages}, nil
}

// Stages returns the stages of the pipeline.
func (p *Pipeline[T]) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Apply runs the message through all stages. Evaluation stops at the first
// predicate that drops the value or the first stage that fails.
func (p *Pipeline[T]) Apply(_ context.Context, msg message.Message) Result[T] {
	defer measure.PipelineDurationTimer.UpdateSince(time.Now())

	var v any = msg
	for _, s := range p.stages {
		out, keep, err := p.applyStage(s, msg, v)
		switch {
		case cerrors.Is(err, ErrParse):
			return SkipResult[T](msg, s.name, ReasonParse, err)
		case err != nil:
			return ErrorResult[T](msg, s.name, cerrors.Errorf("stage %s: %w", s.name, err))
		case !keep:
			return SkipResult[T](msg, s.name, ReasonFilteredPrefix+s.name, nil)
		}
		v = out
	}

	payload, ok := v.(T)
	if !ok {
		var zero T
		return ErrorResult[T](msg, "", cerrors.Errorf("pipeline expected %T, got %T: %w", zero, v, ErrTypeMismatch))
	}
	return RecordResult(msg, payload)
}

func (p *Pipeline[T]) applyStage(s Stage, msg message.Message, v any) (out any, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerrors.Errorf("%v: %w", r, ErrStagePanic)
		}
	}()
	return s.apply(msg, v)
}
