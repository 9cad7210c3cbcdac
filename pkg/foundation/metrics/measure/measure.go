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

package measure

import (
	"strconv"

	"github.com/conduitio/hubflow/pkg/foundation/metrics"
	"github.com/conduitio/hubflow/pkg/foundation/metrics/prometheus"
)

// Outcome label values used by MessagesCounter.
const (
	OutcomeDelivered = "delivered"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeErrored   = "errored"
)

// Any changes in metrics defined below should also be reflected in the README.
var (
	HubflowInfo = metrics.NewLabeledGauge("hubflow_info",
		"Information about hubflow.",
		[]string{"version"})

	MessagesReceivedCounter = metrics.NewLabeledCounter("hubflow_messages_received_total",
		"Number of messages read from the hub by partition.",
		[]string{"partition"})
	MessagesCounter = metrics.NewLabeledCounter("hubflow_messages_total",
		"Number of messages handled by the sink by partition and outcome (delivered, skipped, failed, errored).",
		[]string{"partition", "outcome"})
	MessageBytesHistogram = metrics.NewLabeledHistogram("hubflow_message_bytes",
		"Size of message bodies read from the hub by partition.",
		[]string{"partition"},
		// buckets from 64B to 128KiB
		prometheus.HistogramOpts{Buckets: []float64{64, 64 << 1, 64 << 2, 64 << 3, 64 << 4, 64 << 5, 64 << 6, 64 << 7, 64 << 8, 64 << 9, 64 << 10, 64 << 11}},
	)

	SourceFetchDurationTimer = metrics.NewLabeledTimer("hubflow_source_fetch_duration_seconds",
		"Amount of time spent fetching a batch of messages from the hub by partition.",
		[]string{"partition"},
		prometheus.HistogramOpts{Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}},
	)
	SourceFetchRetriesCounter = metrics.NewLabeledCounter("hubflow_source_fetch_retries_total",
		"Number of failed fetches that were retried by partition.",
		[]string{"partition"})

	PipelineDurationTimer = metrics.NewTimer("hubflow_pipeline_duration_seconds",
		"Amount of time spent applying the pipeline stages to a message.",
		prometheus.HistogramOpts{Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1}},
	)
	SinkDurationTimer = metrics.NewLabeledTimer("hubflow_sink_duration_seconds",
		"Amount of time spent executing the side effect of a record by effect type.",
		[]string{"effect"},
		prometheus.HistogramOpts{Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}},
	)

	CheckpointOffsetGauge = metrics.NewLabeledGauge("hubflow_checkpoint_offset",
		"Last offset persisted in the checkpoint store by partition.",
		[]string{"partition"})
	CheckpointSaveRetriesCounter = metrics.NewCounter("hubflow_checkpoint_save_retries_total",
		"Number of checkpoint writes that failed and were retried.")

	SupervisionDecisionsCounter = metrics.NewLabeledCounter("hubflow_supervision_decisions_total",
		"Number of supervision decisions by decision (resume, halt).",
		[]string{"decision"})
	PipelineHaltedGauge = metrics.NewGauge("hubflow_pipeline_halted",
		"Set to 1 when the pipeline is halted, 0 while it is running.")
	PipelineRestartsCounter = metrics.NewCounter("hubflow_pipeline_restarts_total",
		"Number of times the pipeline was restarted after a halt.")
)

// PartitionLabel formats a partition ID as a label value.
func PartitionLabel(partition int) string {
	return strconv.Itoa(partition)
}
