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
	"context"
	"io"
	"os"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/yaml/v3"
)

type Parser struct {
	logger log.CtxLogger
}

func NewParser(logger log.CtxLogger) *Parser {
	return &Parser{
		logger: logger.WithComponent("config.Parser"),
	}
}

// ParseFile parses the pipeline file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cerrors.Errorf("could not open pipeline file: %w", err)
	}
	defer f.Close()

	pipelines, err := p.Parse(ctx, f)
	if err != nil {
		return nil, cerrors.Errorf("%s: %w", path, err)
	}
	return pipelines, nil
}

// Parse decodes all YAML documents in reader and returns the validated
// pipelines. Environment variables in string values are expanded. Unknown
// fields are logged as warnings.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) ([]Pipeline, error) {
	dec := yaml.NewDecoder(reader)
	dec.KnownFields(true)
	dec.WithHook(envDecoderHook) // replace environment variables with their values

	var pipelines []Pipeline
	seen := make(map[string]bool)
	for {
		var cfg Configuration
		err := dec.Decode(&cfg)
		if err != nil {
			// we reached the end of the document
			if cerrors.Is(err, io.EOF) {
				break
			}
			// check if it's a type error (document was partially decoded)
			var typeErr *yaml.TypeError
			if cerrors.As(err, &typeErr) {
				err = p.handleYamlTypeError(ctx, typeErr)
			}
			// check if we recovered from the error
			if err != nil {
				return nil, cerrors.Errorf("parsing error: %w", err)
			}
		}

		if cfg.Version == "" {
			p.logger.Warn(ctx).Msgf("version not specified, assuming version %s", LatestVersion)
		} else if cfg.Version != LatestVersion {
			return nil, cerrors.Errorf("unsupported version %q, expected %q: %w", cfg.Version, LatestVersion, ErrInvalidField)
		}

		for _, pl := range cfg.Pipelines {
			if seen[pl.ID] {
				return nil, cerrors.Errorf("pipeline %q: %w", pl.ID, ErrDuplicateID)
			}
			seen[pl.ID] = true
			if err := Validate(pl); err != nil {
				return nil, cerrors.Errorf("pipeline %q: %w", pl.ID, err)
			}
			pipelines = append(pipelines, pl)
		}
	}

	return pipelines, nil
}

func (p *Parser) handleYamlTypeError(ctx context.Context, typeErr *yaml.TypeError) error {
	for _, uerr := range typeErr.Errors {
		if _, ok := uerr.(*yaml.UnknownFieldError); !ok {
			// we don't tolerate any other error except unknown field
			return typeErr
		}
	}
	// only UnknownFieldErrors found, log them
	for _, uerr := range typeErr.Errors {
		p.logger.Warn(ctx).
			Int("line", uerr.Line()).
			Int("column", uerr.Column()).
			Msg(uerr.Error())
	}
	return nil
}

func envDecoderHook(_ []string, node *yaml.Node) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		node.SetString(os.ExpandEnv(node.Value))
	}
}

// Select returns the pipeline with the ID. If id is empty and the file
// contains a single pipeline, that pipeline is returned.
func Select(pipelines []Pipeline, id string) (Pipeline, error) {
	if id == "" {
		if len(pipelines) != 1 {
			return Pipeline{}, cerrors.Errorf("found %d pipelines, pipeline id needs to be specified: %w", len(pipelines), ErrMandatoryField)
		}
		return pipelines[0], nil
	}
	for _, pl := range pipelines {
		if pl.ID == id {
			return pl, nil
		}
	}
	return Pipeline{}, cerrors.Errorf("pipeline %q not found", id)
}
