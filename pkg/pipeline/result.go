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

package pipeline

import (
	"github.com/conduitio/hubflow/pkg/message"
)

// Outcome describes how the pipeline handled a message.
type Outcome int

const (
	// OutcomeRecord means the message passed all stages and produced a record.
	OutcomeRecord Outcome = iota + 1
	// OutcomeSkip means the message was dropped by a predicate or could not
	// be parsed. Skipped messages are still acknowledged.
	OutcomeSkip
	// OutcomeError means a stage failed.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecord:
		return "record"
	case OutcomeSkip:
		return "skip"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Skip reasons.
const (
	ReasonParse          = "parse"
	ReasonFilteredPrefix = "filtered:"
)

// Record is a value produced by the pipeline together with the message it
// was produced from.
type Record[T any] struct {
	Payload T
	Message message.Message
}

// Result is the result of applying the pipeline to a message. Exactly one of
// the outcomes is set.
type Result[T any] struct {
	Outcome Outcome
	// Message is the processed message, it is set for all outcomes.
	Message message.Message
	// Record is only set if Outcome is OutcomeRecord.
	Record Record[T]
	// Reason is only set if Outcome is OutcomeSkip.
	Reason string
	// Stage is the name of the stage that skipped the message or failed.
	Stage string
	// Err is set if Outcome is OutcomeError, or if the message was skipped
	// because it could not be parsed.
	Err error
}

func RecordResult[T any](msg message.Message, payload T) Result[T] {
	return Result[T]{
		Outcome: OutcomeRecord,
		Message: msg,
		Record:  Record[T]{Payload: payload, Message: msg},
	}
}

func SkipResult[T any](msg message.Message, stage, reason string, err error) Result[T] {
	return Result[T]{
		Outcome: OutcomeSkip,
		Message: msg,
		Stage:   stage,
		Reason:  reason,
		Err:     err,
	}
}

func ErrorResult[T any](msg message.Message, stage string, err error) Result[T] {
	return Result[T]{
		Outcome: OutcomeError,
		Message: msg,
		Stage:   stage,
		Err:     err,
	}
}
