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

// Package inmemory implements a hub that keeps its partitions in memory.
package inmemory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/message"
	"github.com/conduitio/hubflow/pkg/source"
)

// Hub is an in-memory hub with appendable partitions. Offsets of a partition
// start at 0 and equal the index of the message in the partition.
type Hub struct {
	m          sync.Mutex
	partitions map[int][]message.Message
	now        func() time.Time
}

var _ source.Hub = (*Hub)(nil)

// New creates a hub with partitions 0 to n-1.
func New(n int) *Hub {
	h := &Hub{
		partitions: make(map[int][]message.Message, n),
		now:        time.Now,
	}
	for p := range n {
		h.partitions[p] = nil
	}
	return h
}

// Append adds msg to the end of the partition and returns the stored
// message. The offset is assigned by the hub, the timestamp is set to the
// current time if it is zero and the schema tag is derived from the
// properties if it is empty.
func (h *Hub) Append(partition int, msg message.Message) (message.Message, error) {
	h.m.Lock()
	defer h.m.Unlock()

	msgs, ok := h.partitions[partition]
	if !ok {
		return message.Message{}, cerrors.Errorf("partition %d: %w", partition, source.ErrUnknownPartition)
	}

	msg = msg.Clone()
	msg.Partition = partition
	msg.Offset = int64(len(msgs))
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now()
	}
	if msg.SchemaTag == "" {
		msg.SchemaTag = message.SchemaTagFromProperties(msg.Properties)
	}
	h.partitions[partition] = append(msgs, msg)
	return msg.Clone(), nil
}

func (h *Hub) ListPartitions(context.Context) ([]int, error) {
	h.m.Lock()
	defer h.m.Unlock()

	out := make([]int, 0, len(h.partitions))
	for p := range h.partitions {
		out = append(out, p)
	}
	slices.Sort(out)
	return out, nil
}

func (h *Hub) Fetch(_ context.Context, partition int, start source.StartPosition, maxCount int) ([]message.Message, error) {
	h.m.Lock()
	defer h.m.Unlock()

	msgs, ok := h.partitions[partition]
	if !ok {
		return nil, cerrors.Errorf("partition %d: %w", partition, source.ErrUnknownPartition)
	}

	var from int
	if off, ok := start.Offset(); ok {
		from = int(min(off, int64(len(msgs))))
	} else {
		t, _ := start.Time()
		from = sort.Search(len(msgs), func(i int) bool {
			return !msgs[i].Timestamp.Before(t)
		})
	}
	to := min(from+maxCount, len(msgs))

	out := make([]message.Message, 0, to-from)
	for _, msg := range msgs[from:to] {
		out = append(out, msg.Clone())
	}
	return out, nil
}

// Close does nothing, the hub keeps its messages and can be read again.
func (h *Hub) Close() error {
	return nil
}
