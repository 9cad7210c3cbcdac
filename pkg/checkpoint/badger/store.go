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

// Package badger implements a checkpoint store backed by an embedded badger
// database.
package badger

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	keyPrefix = "checkpoint/"
	// maxConflictRetries is the number of times a save is retried when a
	// concurrent transaction wrote the same key.
	maxConflictRetries = 10
)

// Store implements checkpoint.Store by storing JSON encoded records in badger.
// Each record is stored under the key checkpoint/<consumer>/<partition>.
type Store struct {
	db       *badger.DB
	logger   log.CtxLogger
	consumer string
}

var _ checkpoint.Store = (*Store)(nil)

// New opens the badger database in path. Positions are stored in the
// namespace of consumer, so multiple consumers can share one database.
func New(l log.CtxLogger, path, consumer string) (*Store, error) {
	if strings.TrimSpace(consumer) == "" {
		return nil, cerrors.New("badger checkpoint store requires a consumer")
	}
	// the consumer is a key segment, a separator would overlap other namespaces
	if strings.Contains(consumer, "/") {
		return nil, cerrors.Errorf("badger checkpoint store: consumer %q must not contain \"/\"", consumer)
	}

	l = l.WithComponent("badger.Store")
	opt := badger.DefaultOptions(path)
	opt.Logger = logger(l.Logger)

	db, err := badger.Open(opt)
	if err != nil {
		return nil, cerrors.Errorf("badger: could not open db: %w", err)
	}

	return &Store{
		db:       db,
		logger:   l,
		consumer: consumer,
	}, nil
}

func (s *Store) Load(_ context.Context, partition int) (cursor.Position, error) {
	var pos cursor.Position
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		pos, err = s.getWithTxn(txn, partition)
		return err
	})
	return pos, err
}

// Save stores pos if it is newer than the stored position. Concurrent saves
// of the same partition are detected by badger and retried.
func (s *Store) Save(ctx context.Context, pos cursor.Position) (cursor.Position, error) {
	for attempt := 1; ; attempt++ {
		var stored cursor.Position
		err := s.db.Update(func(txn *badger.Txn) error {
			current, err := s.getWithTxn(txn, pos.Partition)
			switch {
			case cerrors.Is(err, checkpoint.ErrNotFound):
				stored = pos
			case err != nil:
				return err
			default:
				stored = checkpoint.Max(current, pos)
				if stored.Offset == current.Offset {
					return nil // nothing to write
				}
			}
			return s.setWithTxn(txn, stored)
		})
		if err == nil {
			return stored, nil
		}
		if !cerrors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return cursor.Position{}, cerrors.Errorf("badger: could not save checkpoint of partition %d: %w", pos.Partition, err)
		}
		s.logger.Trace(ctx).
			Int(log.PartitionField, pos.Partition).
			Int(log.AttemptField, attempt).
			Msg("transaction conflict, retrying")
	}
}

func (s *Store) Reset(_ context.Context, partition int) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(partition))
	})
	if err != nil {
		return cerrors.Errorf("badger: could not delete checkpoint of partition %d: %w", partition, err)
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]cursor.Position, error) {
	var out []cursor.Position
	err := s.db.View(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Prefix = s.prefix()
		it := txn.NewIterator(opt)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			pos, err := s.decode(it.Item())
			if err != nil {
				return err
			}
			out = append(out, pos)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// keys are sorted lexicographically, we need numeric order
	sort.Slice(out, func(i, j int) bool { return out[i].Partition < out[j].Partition })
	return out, nil
}

// Close flushes any pending writes and closes the db.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getWithTxn(txn *badger.Txn, partition int) (cursor.Position, error) {
	item, err := txn.Get(s.key(partition))
	if err != nil {
		if cerrors.Is(err, badger.ErrKeyNotFound) {
			err = checkpoint.ErrNotFound // translate to internal error
		}
		return cursor.Position{}, cerrors.Errorf("badger: could not get checkpoint of partition %d: %w", partition, err)
	}
	return s.decode(item)
}

func (s *Store) setWithTxn(txn *badger.Txn, pos cursor.Position) error {
	val, err := json.Marshal(checkpoint.NewRecord(pos))
	if err != nil {
		return cerrors.Errorf("badger: could not encode checkpoint: %w", err)
	}
	return txn.Set(s.key(pos.Partition), val)
}

func (s *Store) decode(item *badger.Item) (cursor.Position, error) {
	val, err := item.ValueCopy(nil)
	if err != nil {
		return cursor.Position{}, cerrors.Errorf("badger: could not get value for key %q: %w", item.Key(), err)
	}
	var r checkpoint.Record
	if err := json.Unmarshal(val, &r); err != nil {
		return cursor.Position{}, cerrors.Errorf("badger: could not decode value for key %q: %w", item.Key(), err)
	}
	return r.Position(), nil
}

func (s *Store) prefix() []byte {
	return []byte(keyPrefix + s.consumer + "/")
}

func (s *Store) key(partition int) []byte {
	return append(s.prefix(), strconv.Itoa(partition)...)
}
