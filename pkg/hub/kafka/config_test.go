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

package kafka

import (
	"testing"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/matryer/is"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Servers = []string{"localhost:9092"}
		cfg.Topic = "telemetry"
		return cfg
	}

	testCases := []struct {
		name    string
		config  func(Config) Config
		wantErr error
	}{{
		name:   "valid",
		config: func(c Config) Config { return c },
	}, {
		name:    "servers missing",
		config:  func(c Config) Config { c.Servers = nil; return c },
		wantErr: ErrServersMissing,
	}, {
		name:    "empty server",
		config:  func(c Config) Config { c.Servers = []string{"localhost:9092", " "}; return c },
		wantErr: ErrServersMissing,
	}, {
		name:    "topic missing",
		config:  func(c Config) Config { c.Topic = ""; return c },
		wantErr: ErrTopicMissing,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			err := tc.config(valid()).Validate()
			if tc.wantErr == nil {
				is.NoErr(err)
				return
			}
			is.True(cerrors.Is(err, tc.wantErr))
		})
	}
}

func TestSplitServers(t *testing.T) {
	is := is.New(t)
	is.Equal(SplitServers("a:9092, b:9092,,"), []string{"a:9092", "b:9092"})
	is.Equal(SplitServers(""), []string(nil))
}
