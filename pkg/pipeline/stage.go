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
	"fmt"
	"reflect"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
)

// Stage is a single step of a pipeline. A stage is either a predicate that
// decides if a value continues through the pipeline, or a mapper that
// transforms a value into a new one. Stages are created with Filter,
// FilterErr and Map.
type Stage struct {
	name   string
	filter bool
	in     reflect.Type
	out    reflect.Type
	// apply returns the output value and false if the value was dropped.
	apply func(msg message.Message, in any) (any, bool, error)
}

// Name returns the name of the stage.
func (s Stage) Name() string {
	return s.name
}

func (s Stage) String() string {
	if s.filter {
		return fmt.Sprintf("filter %s (%v)", s.name, s.in)
	}
	return fmt.Sprintf("map %s (%v -> %v)", s.name, s.in, s.out)
}

// Filter returns a predicate stage. Values for which pred returns false are
// dropped.
func Filter[In any](name string, pred func(In) bool) Stage {
	return FilterErr(name, func(in In) (bool, error) {
		return pred(in), nil
	})
}

// FilterErr returns a predicate stage that can fail. A failing predicate
// ends the evaluation of the pipeline.
func FilterErr[In any](name string, pred func(In) (bool, error)) Stage {
	typ := reflect.TypeFor[In]()
	return Stage{
		name:   name,
		filter: true,
		in:     typ,
		out:    typ,
		apply: func(_ message.Message, v any) (any, bool, error) {
			in, ok := v.(In)
			if !ok {
				return nil, false, typeMismatch(name, typ, v)
			}
			keep, err := pred(in)
			if err != nil {
				return nil, false, err
			}
			return in, keep, nil
		},
	}
}

// Map returns a mapper stage. Besides the current value, fn receives the
// message that is being processed.
func Map[In, Out any](name string, fn func(message.Message, In) (Out, error)) Stage {
	typ := reflect.TypeFor[In]()
	return Stage{
		name: name,
		in:   typ,
		out:  reflect.TypeFor[Out](),
		apply: func(msg message.Message, v any) (any, bool, error) {
			in, ok := v.(In)
			if !ok {
				return nil, false, typeMismatch(name, typ, v)
			}
			out, err := fn(msg, in)
			if err != nil {
				return nil, false, err
			}
			return out, true, nil
		},
	}
}

func typeMismatch(stage string, want reflect.Type, got any) error {
	return cerrors.Errorf("stage %s expected %v, got %T: %w", stage, want, got, ErrTypeMismatch)
}
