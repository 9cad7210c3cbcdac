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

package supervision

import (
	"testing"

	"github.com/matryer/is"
)

func TestFailureWindow(t *testing.T) {
	testCases := []struct {
		name      string
		size      int
		threshold int
		// deliveries, true = failed
		deliveries []bool
		wantErr    bool
	}{{
		name:       "disabled",
		size:       0,
		threshold:  0,
		deliveries: []bool{true, true, true},
		wantErr:    false,
	}, {
		name:       "zero threshold",
		size:       5,
		threshold:  0,
		deliveries: []bool{false, true},
		wantErr:    true,
	}, {
		name:       "threshold reached but not exceeded",
		size:       4,
		threshold:  2,
		deliveries: []bool{true, false, true},
		wantErr:    false,
	}, {
		name:       "threshold exceeded",
		size:       4,
		threshold:  2,
		deliveries: []bool{true, false, true, true},
		wantErr:    true,
	}, {
		name:       "old failures slide out",
		size:       3,
		threshold:  1,
		deliveries: []bool{true, false, false, true, false, false, true},
		wantErr:    false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			w := newFailureWindow(tc.size, tc.threshold)

			var err error
			for _, failed := range tc.deliveries {
				if failed {
					err = w.Nack()
					continue
				}
				w.Ack()
			}
			is.Equal(err != nil, tc.wantErr)
		})
	}
}
