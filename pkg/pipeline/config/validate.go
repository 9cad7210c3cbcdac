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

package config

import (
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/pipeline"
)

// Validate validates config field values of a pipeline.
func Validate(cfg Pipeline) error {
	var errs []error
	if cfg.ID == "" {
		errs = append(errs, cerrors.Errorf(`"id" is mandatory: %w`, ErrMandatoryField))
	}
	for i, c := range cfg.Conditions {
		if err := validateCondition(c); err != nil {
			errs = append(errs, cerrors.Errorf("condition %d: %w", i, err))
		}
	}
	errs = append(errs, validateEffect(cfg.Effect)...)
	return cerrors.Join(errs...)
}

func validateCondition(c Condition) error {
	cond, err := toCondition(c)
	if err != nil {
		return err
	}
	if err := cond.Validate(); err != nil {
		return cerrors.Errorf("%v: %w", err, ErrInvalidField)
	}
	return nil
}

func validateEffect(e Effect) []error {
	var errs []error
	switch e.Type {
	case "":
		errs = append(errs, cerrors.Errorf(`"effect.type" is mandatory: %w`, ErrMandatoryField))
	case EffectDisplay:
		if e.Display.Format != "" && e.Display.Format != FormatAlert && e.Display.Format != FormatRaw {
			errs = append(errs, cerrors.Errorf(`"effect.display.format" must be %q or %q: %w`, FormatAlert, FormatRaw, ErrInvalidField))
		}
	case EffectForward:
		if e.Forward.Topic == "" {
			errs = append(errs, cerrors.Errorf(`"effect.forward.topic" is mandatory: %w`, ErrMandatoryField))
		}
	case EffectCommand:
		if e.Command.Name == "" {
			errs = append(errs, cerrors.Errorf(`"effect.command.name" is mandatory: %w`, ErrMandatoryField))
		}
	default:
		errs = append(errs, cerrors.Errorf(`"effect.type" %q is invalid: %w`, e.Type, ErrInvalidField))
	}
	return errs
}

// toCondition converts the configured condition into a pipeline condition.
func toCondition(c Condition) (pipeline.Condition, error) {
	if c.Op == "" {
		return pipeline.Condition{}, cerrors.Errorf(`"op" is mandatory: %w`, ErrMandatoryField)
	}
	op, err := pipeline.ParseOp(c.Op)
	if err != nil {
		return pipeline.Condition{}, cerrors.Errorf("%v: %w", err, ErrInvalidField)
	}

	cond := pipeline.Condition{Op: op}
	if op == pipeline.OpOutside {
		if c.Min == nil || c.Max == nil {
			return pipeline.Condition{}, cerrors.Errorf(`operator "outside" requires "min" and "max": %w`, ErrMandatoryField)
		}
		cond.Min, cond.Max = *c.Min, *c.Max
		return cond, nil
	}
	if c.Value == nil {
		return pipeline.Condition{}, cerrors.Errorf(`operator %q requires "value": %w`, c.Op, ErrMandatoryField)
	}
	cond.Value = *c.Value
	return cond, nil
}
