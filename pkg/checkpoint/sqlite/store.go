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

// Package sqlite implements a checkpoint store backed by an embedded sqlite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	_ "modernc.org/sqlite"
)

// Store implements checkpoint.Store by storing positions in a sqlite table
// with one row per consumer and partition.
type Store struct {
	db       *sql.DB
	logger   log.CtxLogger
	table    string
	consumer string
}

var _ checkpoint.Store = (*Store)(nil)

// New opens (or creates) the database file hubflow.db in the directory path
// and creates the checkpoint table if it does not exist.
func New(ctx context.Context, l log.CtxLogger, path, table, consumer string) (*Store, error) {
	if strings.TrimSpace(table) == "" {
		return nil, cerrors.New("sqlite checkpoint store requires a table")
	}
	if strings.TrimSpace(consumer) == "" {
		return nil, cerrors.New("sqlite checkpoint store requires a consumer")
	}

	dbpath, err := dburl(path)
	if err != nil {
		return nil, cerrors.Errorf("failed to construct db path: %w", err)
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, cerrors.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer, serialize access instead of failing
	// with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			consumer     TEXT    NOT NULL,
			partition_id INTEGER NOT NULL,
			"offset"     INTEGER NOT NULL,
			last_updated INTEGER NOT NULL,
			PRIMARY KEY (consumer, partition_id)
		)`,
		table,
	)
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return nil, cerrors.Errorf("failed to init database: %w", err)
	}

	l = l.WithComponent("sqlite.Store")
	l.Debug(ctx).Str("path", dbpath).Msg("sqlite checkpoint store opened")

	return &Store{
		db:       db,
		logger:   l,
		table:    table,
		consumer: consumer,
	}, nil
}

func (s *Store) Load(ctx context.Context, partition int) (cursor.Position, error) {
	query := fmt.Sprintf(`
		SELECT partition_id, "offset", last_updated
		FROM %q
		WHERE consumer = $1 AND partition_id = $2`, s.table)
	pos, err := scanPosition(s.db.QueryRowContext(ctx, query, s.consumer, partition))
	if err != nil {
		if cerrors.Is(err, sql.ErrNoRows) {
			return cursor.Position{}, cerrors.Errorf("partition %d: %w", partition, checkpoint.ErrNotFound)
		}
		return cursor.Position{}, cerrors.Errorf("failed to get checkpoint of partition %d: %w", partition, err)
	}
	return pos, nil
}

func (s *Store) Save(ctx context.Context, pos cursor.Position) (cursor.Position, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]q (consumer, partition_id, "offset", last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consumer, partition_id)
		DO UPDATE SET "offset" = excluded."offset", last_updated = excluded.last_updated
		WHERE %[1]q."offset" < excluded."offset"
		RETURNING partition_id, "offset", last_updated`, s.table)

	stored, err := scanPosition(s.db.QueryRowContext(ctx, query, s.consumer, pos.Partition, pos.Offset, pos.UpdatedAt.UnixNano()))
	if cerrors.Is(err, sql.ErrNoRows) {
		// the stored position is newer
		return s.Load(ctx, pos.Partition)
	}
	if err != nil {
		return cursor.Position{}, cerrors.Errorf("failed to save checkpoint of partition %d: %w", pos.Partition, err)
	}
	return stored, nil
}

func (s *Store) Reset(ctx context.Context, partition int) error {
	query := fmt.Sprintf(`DELETE FROM %q WHERE consumer = $1 AND partition_id = $2`, s.table)
	res, err := s.db.ExecContext(ctx, query, s.consumer, partition)
	if err != nil {
		return cerrors.Errorf("failed to delete checkpoint of partition %d: %w", partition, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return cerrors.Errorf("failed to retrieve affected rows: %w", err)
	}
	if n == 0 {
		s.logger.Debug(ctx).Int(log.PartitionField, partition).Msg("no checkpoint to reset")
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]cursor.Position, error) {
	query := fmt.Sprintf(`
		SELECT partition_id, "offset", last_updated
		FROM %q
		WHERE consumer = $1
		ORDER BY partition_id`, s.table)
	rows, err := s.db.QueryContext(ctx, query, s.consumer)
	if err != nil {
		return nil, cerrors.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []cursor.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, cerrors.Errorf("failed to scan checkpoint: %w", err)
		}
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Errorf("failed to iterate checkpoints: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (cursor.Position, error) {
	var (
		pos         cursor.Position
		lastUpdated int64
	)
	if err := row.Scan(&pos.Partition, &pos.Offset, &lastUpdated); err != nil {
		return cursor.Position{}, err
	}
	pos.UpdatedAt = time.Unix(0, lastUpdated).UTC()
	return pos, nil
}

func dburl(path string) (string, error) {
	v := url.Values{}
	v.Add("_pragma", "journal_mode(WAL)")
	v.Add("_pragma", "synchronous(NORMAL)")
	v.Add("_pragma", "busy_timeout(5000)")

	abspath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(abspath, 0o750); err != nil {
		return "", err
	}

	u := url.URL{
		Scheme:   "file",
		Path:     filepath.Join(abspath, "hubflow.db"),
		RawQuery: v.Encode(),
	}

	return u.String(), nil
}
