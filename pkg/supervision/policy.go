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

// Package supervision decides whether the pipeline keeps running after a
// failure.
package supervision

import (
	"context"
	"sync"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/measure"
	"github.com/conduitio/hubflow/pkg/sink"
	"github.com/conduitio/hubflow/pkg/source"
)

type State int

const (
	StateRunning State = iota
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	}
	return "unknown"
}

type Decision int

const (
	// Resume means the failed message is left behind and processing
	// continues.
	Resume Decision = iota
	// Halt means the pipeline needs to stop.
	Halt
)

func (d Decision) String() string {
	switch d {
	case Resume:
		return "resume"
	case Halt:
		return "halt"
	}
	return "unknown"
}

// Failure describes a failure observed while processing a message.
type Failure struct {
	Partition int
	Offset    int64
	Err       error
}

// Config controls how delivery failures are tolerated.
type Config struct {
	// HaltOnSinkFailures enables the sink failure window. If disabled, failed
	// deliveries never halt the pipeline.
	HaltOnSinkFailures bool
	// WindowSize is the number of last deliveries per partition taken into
	// account.
	WindowSize int
	// WindowThreshold is the number of failed deliveries in the window that
	// is tolerated. Exceeding it halts the pipeline.
	WindowThreshold int
}

// Policy decides how failures are handled. Once halted, it stays halted.
type Policy struct {
	cfg    Config
	logger log.CtxLogger

	m       sync.Mutex
	state   State
	cause   error
	halted  chan struct{}
	windows map[int]*failureWindow
}

func NewPolicy(cfg Config, logger log.CtxLogger) *Policy {
	measure.PipelineHaltedGauge.Set(0)
	return &Policy{
		cfg:     cfg,
		logger:  logger.WithComponent("supervision.Policy"),
		state:   StateRunning,
		halted:  make(chan struct{}),
		windows: make(map[int]*failureWindow),
	}
}

// Delivered records a successful delivery on the partition.
func (p *Policy) Delivered(partition int) {
	if !p.cfg.HaltOnSinkFailures {
		return
	}
	p.m.Lock()
	defer p.m.Unlock()
	p.window(partition).Ack()
}

// Decide returns the decision for the failure. After a Halt decision every
// further failure is answered with Halt.
func (p *Policy) Decide(ctx context.Context, f Failure) Decision {
	p.m.Lock()
	if p.state == StateHalted {
		p.m.Unlock()
		return Halt
	}

	decision, cause := p.decide(f)
	measure.SupervisionDecisionsCounter.WithValues(decision.String()).Inc()

	if decision == Halt {
		p.state = StateHalted
		p.cause = cause
		close(p.halted)
		measure.PipelineHaltedGauge.Set(1)
	}
	p.m.Unlock()

	e := p.logger.Warn(ctx)
	if decision == Halt {
		e = p.logger.Error(ctx)
	}
	e.Err(f.Err).
		Int(log.PartitionField, f.Partition).
		Int64(log.OffsetField, f.Offset).
		Str(log.DecisionField, decision.String()).
		Msg("pipeline failure")
	return decision
}

func (p *Policy) decide(f Failure) (Decision, error) {
	switch {
	case cerrors.Is(f.Err, cursor.ErrOutOfOrderAdvance),
		cerrors.Is(f.Err, checkpoint.ErrCheckpointWrite),
		cerrors.Is(f.Err, source.ErrSourcePull),
		cerrors.IsFatalError(f.Err):
		return Halt, f.Err
	case cerrors.Is(f.Err, sink.ErrSinkDelivery):
		if !p.cfg.HaltOnSinkFailures {
			return Resume, nil
		}
		if err := p.window(f.Partition).Nack(); err != nil {
			return Halt, cerrors.Errorf("partition %d: %v: %w", f.Partition, err, f.Err)
		}
		return Resume, nil
	default:
		return Resume, nil
	}
}

func (p *Policy) window(partition int) *failureWindow {
	w, ok := p.windows[partition]
	if !ok {
		w = newFailureWindow(p.cfg.WindowSize, p.cfg.WindowThreshold)
		p.windows[partition] = w
	}
	return w
}

func (p *Policy) State() State {
	p.m.Lock()
	defer p.m.Unlock()
	return p.state
}

// Err returns the cause of the halt, nil while running.
func (p *Policy) Err() error {
	p.m.Lock()
	defer p.m.Unlock()
	return p.cause
}

// Halted returns a channel that is closed when the policy halts.
func (p *Policy) Halted() <-chan struct{} {
	return p.halted
}
