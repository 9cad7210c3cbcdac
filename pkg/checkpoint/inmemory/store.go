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

// Package inmemory implements a checkpoint store that keeps positions in
// memory. Positions are lost when the process exits.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
)

// Store is a checkpoint store implementation that keeps positions in memory.
type Store struct {
	m      sync.Mutex
	values map[int]cursor.Position
}

var _ checkpoint.Store = (*Store)(nil)

func New() *Store {
	return &Store{values: make(map[int]cursor.Position)}
}

func (s *Store) Load(_ context.Context, partition int) (cursor.Position, error) {
	s.m.Lock()
	defer s.m.Unlock()

	pos, ok := s.values[partition]
	if !ok {
		return cursor.Position{}, cerrors.Errorf("partition %d: %w", partition, checkpoint.ErrNotFound)
	}
	return pos, nil
}

func (s *Store) Save(_ context.Context, pos cursor.Position) (cursor.Position, error) {
	s.m.Lock()
	defer s.m.Unlock()

	stored, ok := s.values[pos.Partition]
	if ok {
		pos = checkpoint.Max(stored, pos)
	}
	s.values[pos.Partition] = pos
	return pos, nil
}

func (s *Store) Reset(_ context.Context, partition int) error {
	s.m.Lock()
	defer s.m.Unlock()

	delete(s.values, partition)
	return nil
}

func (s *Store) List(context.Context) ([]cursor.Position, error) {
	s.m.Lock()
	defer s.m.Unlock()

	out := make([]cursor.Position, 0, len(s.values))
	for _, pos := range s.values {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partition < out[j].Partition })
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
