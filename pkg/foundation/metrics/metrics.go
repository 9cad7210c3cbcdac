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

// Package metrics decouples metric declarations from the backend collecting
// them. Metrics are declared globally (see package measure) and are created in
// every Registry passed to Register, regardless of the order of the calls.
package metrics

import (
	"time"
)

// Registry is an object that can create and collect metrics.
type Registry interface {
	NewCounter(name, help string, opts ...Option) Counter
	NewGauge(name, help string, opts ...Option) Gauge
	NewTimer(name, help string, opts ...Option) Timer
	NewHistogram(name, help string, opts ...Option) Histogram

	NewLabeledCounter(name, help string, labels []string, opts ...Option) LabeledCounter
	NewLabeledGauge(name, help string, labels []string, opts ...Option) LabeledGauge
	NewLabeledTimer(name, help string, labels []string, opts ...Option) LabeledTimer
	NewLabeledHistogram(name, help string, labels []string, opts ...Option) LabeledHistogram
}

// Option is applied on a metric when it is created. A Registry ignores options
// it does not recognize.
type Option interface{}

// Counter only ever goes up. Inc without arguments adds 1, otherwise it adds
// the sum of vs, which must be positive.
type Counter interface {
	Inc(vs ...float64)
}

// Gauge holds a value that can go up and down.
type Gauge interface {
	Inc(vs ...float64)
	Dec(vs ...float64)
	Set(float64)
}

// Timer records durations in seconds.
type Timer interface {
	Update(time.Duration)
	UpdateSince(time.Time)
}

// Histogram records observed values in buckets.
type Histogram interface {
	Observe(float64)
}

type (
	LabeledCounter   interface{ WithValues(vs ...string) Counter }
	LabeledGauge     interface{ WithValues(vs ...string) Gauge }
	LabeledTimer     interface{ WithValues(vs ...string) Timer }
	LabeledHistogram interface{ WithValues(vs ...string) Histogram }
)

// declared is implemented by every metric created through this package.
type declared interface {
	instantiate(Registry)
}

var (
	declarations []declared
	registries   []Registry
)

// Register makes r collect all metrics declared before and after the call.
// It is not safe for concurrent use, call it before any pipeline runs.
func Register(r Registry) {
	registries = append(registries, r)
	for _, d := range declarations {
		d.instantiate(r)
	}
}

func declare(d declared) {
	declarations = append(declarations, d)
	for _, r := range registries {
		d.instantiate(r)
	}
}

// fanout holds one backend metric per registered Registry.
type fanout[M any] struct {
	name    string
	help    string
	labels  []string
	opts    []Option
	create  func(r Registry, f *fanout[M]) M
	members []M
}

func (f *fanout[M]) instantiate(r Registry) {
	f.members = append(f.members, f.create(r, f))
}

func newFanout[M any](name, help string, labels []string, opts []Option, create func(Registry, *fanout[M]) M) *fanout[M] {
	f := &fanout[M]{name: name, help: help, labels: labels, opts: opts, create: create}
	declare(f)
	return f
}

// withValues resolves the labeled members into a fanout of plain metrics.
func withValues[L interface{ WithValues(...string) M }, M any](members []L, vs []string) []M {
	out := make([]M, len(members))
	for i, m := range members {
		out[i] = m.WithValues(vs...)
	}
	return out
}

type counter struct{ *fanout[Counter] }

func NewCounter(name, help string, opts ...Option) Counter {
	return counter{newFanout(name, help, nil, opts, func(r Registry, f *fanout[Counter]) Counter {
		return r.NewCounter(f.name, f.help, f.opts...)
	})}
}

func (c counter) Inc(vs ...float64) {
	for _, m := range c.members {
		m.Inc(vs...)
	}
}

type gauge struct{ *fanout[Gauge] }

func NewGauge(name, help string, opts ...Option) Gauge {
	return gauge{newFanout(name, help, nil, opts, func(r Registry, f *fanout[Gauge]) Gauge {
		return r.NewGauge(f.name, f.help, f.opts...)
	})}
}

func (g gauge) Inc(vs ...float64) {
	for _, m := range g.members {
		m.Inc(vs...)
	}
}

func (g gauge) Dec(vs ...float64) {
	for _, m := range g.members {
		m.Dec(vs...)
	}
}

func (g gauge) Set(v float64) {
	for _, m := range g.members {
		m.Set(v)
	}
}

type timer struct{ *fanout[Timer] }

func NewTimer(name, help string, opts ...Option) Timer {
	return timer{newFanout(name, help, nil, opts, func(r Registry, f *fanout[Timer]) Timer {
		return r.NewTimer(f.name, f.help, f.opts...)
	})}
}

func (t timer) Update(d time.Duration) {
	for _, m := range t.members {
		m.Update(d)
	}
}

func (t timer) UpdateSince(start time.Time) {
	t.Update(time.Since(start))
}

type histogram struct{ *fanout[Histogram] }

func NewHistogram(name, help string, opts ...Option) Histogram {
	return histogram{newFanout(name, help, nil, opts, func(r Registry, f *fanout[Histogram]) Histogram {
		return r.NewHistogram(f.name, f.help, f.opts...)
	})}
}

func (h histogram) Observe(v float64) {
	for _, m := range h.members {
		m.Observe(v)
	}
}

type labeledCounter struct{ *fanout[LabeledCounter] }

func NewLabeledCounter(name, help string, labels []string, opts ...Option) LabeledCounter {
	return labeledCounter{newFanout(name, help, labels, opts, func(r Registry, f *fanout[LabeledCounter]) LabeledCounter {
		return r.NewLabeledCounter(f.name, f.help, f.labels, f.opts...)
	})}
}

func (c labeledCounter) WithValues(vs ...string) Counter {
	return counter{&fanout[Counter]{members: withValues[LabeledCounter, Counter](c.members, vs)}}
}

type labeledGauge struct{ *fanout[LabeledGauge] }

func NewLabeledGauge(name, help string, labels []string, opts ...Option) LabeledGauge {
	return labeledGauge{newFanout(name, help, labels, opts, func(r Registry, f *fanout[LabeledGauge]) LabeledGauge {
		return r.NewLabeledGauge(f.name, f.help, f.labels, f.opts...)
	})}
}

func (g labeledGauge) WithValues(vs ...string) Gauge {
	return gauge{&fanout[Gauge]{members: withValues[LabeledGauge, Gauge](g.members, vs)}}
}

type labeledTimer struct{ *fanout[LabeledTimer] }

func NewLabeledTimer(name, help string, labels []string, opts ...Option) LabeledTimer {
	return labeledTimer{newFanout(name, help, labels, opts, func(r Registry, f *fanout[LabeledTimer]) LabeledTimer {
		return r.NewLabeledTimer(f.name, f.help, f.labels, f.opts...)
	})}
}

func (t labeledTimer) WithValues(vs ...string) Timer {
	return timer{&fanout[Timer]{members: withValues[LabeledTimer, Timer](t.members, vs)}}
}

type labeledHistogram struct{ *fanout[LabeledHistogram] }

func NewLabeledHistogram(name, help string, labels []string, opts ...Option) LabeledHistogram {
	return labeledHistogram{newFanout(name, help, labels, opts, func(r Registry, f *fanout[LabeledHistogram]) LabeledHistogram {
		return r.NewLabeledHistogram(f.name, f.help, f.labels, f.opts...)
	})}
}

func (h labeledHistogram) WithValues(vs ...string) Histogram {
	return histogram{&fanout[Histogram]{members: withValues[LabeledHistogram, Histogram](h.members, vs)}}
}
