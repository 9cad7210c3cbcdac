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

package supervision

import (
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

// failureWindow tracks the outcome of the last deliveries of a partition and
// reports when more failures than tolerated are contained in it.
type failureWindow struct {
	// outcomes is a ring buffer of delivery outcomes (true = failed). It
	// starts out with only successful deliveries.
	outcomes []bool
	// last is the index of the most recent outcome.
	last int
	// threshold is the number of tolerated failures. Once exceeded the
	// window stops recording.
	threshold int
	failed    int
}

func newFailureWindow(size, threshold int) *failureWindow {
	if size > 0 && threshold == 0 {
		// the first failure exceeds the threshold, no need to remember more
		size = 1
	}
	return &failureWindow{
		outcomes:  make([]bool, size),
		threshold: threshold,
	}
}

// Ack records a successful delivery.
func (w *failureWindow) Ack() {
	w.record(false)
}

// Nack records a failed delivery and returns an error if the window contains
// more failures than tolerated.
func (w *failureWindow) Nack() error {
	w.record(true)
	if w.exceeded() {
		return cerrors.Errorf(
			"delivery failure threshold exceeded (%d/%d)",
			w.threshold, len(w.outcomes),
		)
	}
	return nil
}

func (w *failureWindow) exceeded() bool {
	return w.failed > w.threshold
}

func (w *failureWindow) record(failed bool) {
	if len(w.outcomes) == 0 || w.exceeded() {
		return
	}

	w.last = (w.last + 1) % len(w.outcomes)
	evicted := w.outcomes[w.last]
	w.outcomes[w.last] = failed
	switch {
	case evicted && !failed:
		w.failed--
	case !evicted && failed:
		w.failed++
	}
}
