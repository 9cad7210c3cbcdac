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

package sqlite

import (
	"context"
	"testing"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/matryer/is"
)

func TestStore(t *testing.T) {
	is := is.New(t)

	s, err := New(
		context.Background(),
		log.Nop(),
		t.TempDir(),
		"hubflow_checkpoints_test",
		"test-consumer",
	)
	is.NoErr(err)
	t.Cleanup(func() {
		is.NoErr(s.Close())
	})

	checkpoint.AcceptanceTest(t, s)
}
