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
	"strings"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

var (
	ErrServersMissing = cerrors.New("servers missing")
	ErrTopicMissing   = cerrors.New("topic missing")
)

// Config contains the parameters used to read partitions of a Kafka topic.
type Config struct {
	// Servers is a list of bootstrap servers used to discover the cluster.
	Servers []string
	Topic   string
	// ClientID identifies hubflow in broker logs.
	ClientID string
	// MaxWait is the maximum time a fetch waits for new messages before it
	// returns an empty batch.
	MaxWait time.Duration
	// DialTimeout limits the time spent connecting to a broker.
	DialTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ClientID:    "hubflow",
		MaxWait:     250 * time.Millisecond,
		DialTimeout: 10 * time.Second,
	}
}

// Validate returns an error if a required parameter is missing.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return ErrServersMissing
	}
	for i, s := range c.Servers {
		if strings.TrimSpace(s) == "" {
			return cerrors.Errorf("empty %d. server: %w", i, ErrServersMissing)
		}
	}
	if strings.TrimSpace(c.Topic) == "" {
		return ErrTopicMissing
	}
	if c.MaxWait <= 0 {
		return cerrors.Errorf("max wait must be positive, got %v", c.MaxWait)
	}
	return nil
}

// SplitServers splits a comma separated list of servers.
func SplitServers(servers string) []string {
	var out []string
	for _, s := range strings.Split(servers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
