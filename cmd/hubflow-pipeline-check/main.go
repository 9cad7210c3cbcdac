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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/pipeline/config"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	exitCodeErr       = 1
	exitCodeInterrupt = 2
)

func main() {
	ctx := cancelOnInterrupt(context.Background())

	if err := checkPipelines(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeErr)
	}
}

// checkPipelines parses and builds the pipelines in the given pipeline file.
// An error is returned when
// * flags are missing or invalid
// * the file can not be parsed or contains an invalid pipeline
// * the selected pipeline does not exist
func checkPipelines(ctx context.Context, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("hubflow-pipeline-check", pflag.ContinueOnError)
	var (
		path       = flags.String("pipeline.path", "", "path to the yaml pipeline file")
		pipelineID = flags.String("pipeline.id", "", "only check the pipeline with this ID")
		verbose    = flags.Bool("verbose", false, "print additional information during execution")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return cerrors.New("pipeline.path is not set")
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := log.InitLogger(level, log.FormatCLI)

	pipelines, err := config.NewParser(logger).ParseFile(ctx, *path)
	if err != nil {
		return cerrors.Errorf("invalid pipeline file %q: %w", *path, err)
	}
	if *pipelineID != "" {
		p, err := config.Select(pipelines, *pipelineID)
		if err != nil {
			return err
		}
		pipelines = []config.Pipeline{p}
	}

	for _, p := range pipelines {
		built, err := p.Build()
		if err != nil {
			return cerrors.Errorf("pipeline %q: %w", p.ID, err)
		}
		if *verbose {
			stages := make([]string, 0, len(built.Stages()))
			for _, s := range built.Stages() {
				stages = append(stages, s.Name())
			}
			_, _ = fmt.Fprintf(out, "pipeline %q is valid: %s -> %s\n", p.ID, strings.Join(stages, " -> "), p.Effect.Type)
		}
	}
	return nil
}

// cancelOnInterrupt returns a context that is canceled when the interrupt
// signal is received.
// * After the first signal the function will continue to listen
// * On the second signal executes a hard exit, without waiting for a graceful
// shutdown.
func cancelOnInterrupt(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	go func() {
		select {
		case <-signalChan: // first interrupt signal
			cancel()
		case <-ctx.Done():
		}
		<-signalChan // second interrupt signal
		os.Exit(exitCodeInterrupt)
	}()
	return ctx
}
