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

package prometheus

import (
	"sync"

	"github.com/conduitio/hubflow/pkg/foundation/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry returns a registry that is responsible for managing a collection
// of metrics.
//
// Labels allows constant labels to be added to all metrics created in this
// registry (e.g. the consumer name). See also
// https://prometheus.io/docs/instrumenting/writing_exporters/#target-labels,-not-static-scraped-labels
func NewRegistry(labels map[string]string) *Registry {
	return &Registry{
		labels: labels,
	}
}

// Registry implements metrics.Registry as well as prometheus.Collector and can
// thus be used as an adapter to deliver hubflow metrics to the prometheus
// client.
type Registry struct {
	labels  map[string]string
	mu      sync.Mutex
	metrics []prometheus.Collector
}

var (
	_ metrics.Registry     = (*Registry)(nil)
	_ prometheus.Collector = (*Registry)(nil)
)

func (r *Registry) NewCounter(name, help string, _ ...metrics.Option) metrics.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: r.labels})
	r.add(c)
	return counter{pc: c}
}

func (r *Registry) NewLabeledCounter(name, help string, labels []string, _ ...metrics.Option) metrics.LabeledCounter {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: r.labels}, labels)
	r.add(c)
	return labeledCounter{pc: c}
}

func (r *Registry) NewGauge(name, help string, _ ...metrics.Option) metrics.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: r.labels})
	r.add(g)
	return gauge{pg: g}
}

func (r *Registry) NewLabeledGauge(name, help string, labels []string, _ ...metrics.Option) metrics.LabeledGauge {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: r.labels}, labels)
	r.add(g)
	return labeledGauge{pg: g}
}

// NewTimer creates a histogram that observes durations in seconds.
func (r *Registry) NewTimer(name, help string, opts ...metrics.Option) metrics.Timer {
	return timer{h: r.NewHistogram(name, help, opts...)}
}

func (r *Registry) NewLabeledTimer(name, help string, labels []string, opts ...metrics.Option) metrics.LabeledTimer {
	return labeledTimer{h: r.NewLabeledHistogram(name, help, labels, opts...)}
}

func (r *Registry) NewHistogram(name, help string, opts ...metrics.Option) metrics.Histogram {
	h := prometheus.NewHistogram(r.histogramOpts(name, help, opts))
	r.add(h)
	return h
}

func (r *Registry) NewLabeledHistogram(name, help string, labels []string, opts ...metrics.Option) metrics.LabeledHistogram {
	h := prometheus.NewHistogramVec(r.histogramOpts(name, help, opts), labels)
	r.add(h)
	return labeledHistogram{ph: h}
}

func (r *Registry) histogramOpts(name, help string, opts []metrics.Option) prometheus.HistogramOpts {
	promOpts := prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}
	for _, opt := range opts {
		// skip options not meant for prometheus
		if ho, ok := opt.(HistogramOpts); ok {
			promOpts = ho.apply(promOpts)
		}
	}
	return promOpts
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, metric := range r.metrics {
		metric.Describe(ch)
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, metric := range r.metrics {
		metric.Collect(ch)
	}
}

func (r *Registry) add(collector prometheus.Collector) {
	r.mu.Lock()
	r.metrics = append(r.metrics, collector)
	r.mu.Unlock()
}
