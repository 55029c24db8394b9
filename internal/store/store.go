// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package store implements the durable reading store: an append-only SQLite
// table with a bounded retention window and aggregate queries.
//
// Readings are immutable once inserted. The only mutation besides insert is
// the retention sweep, which runs inside the same transaction as the insert
// that pushed the row count over the limit.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lumenlab/lumend/internal/config"
	"github.com/lumenlab/lumend/internal/logging"
	"github.com/lumenlab/lumend/internal/metrics"
	"github.com/lumenlab/lumend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	value INTEGER NOT NULL,
	raw TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_recorded_at ON readings(recorded_at);
`

// Store is the single shared stateful component of the pipeline. All
// mutating operations run under mu; reads go through database/sql and are
// serialized against the in-flight write transaction by SQLite itself.
type Store struct {
	db         *sql.DB
	maxHistory int

	// mu is deliberately coarse: one sensor at sub-second cadence does not
	// warrant finer-grained locking.
	mu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// New opens (or creates) the database file and applies the schema.
func New(cfg config.StoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	// A single writer connection sidesteps SQLITE_BUSY between the ingest
	// path and concurrent API reads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:         db,
		maxHistory: cfg.MaxHistory,
		now:        time.Now,
	}, nil
}

// Save parses the raw payload, inserts a new reading with a store-stamped
// UTC timestamp, and enforces the retention window, all in one transaction.
// Malformed payloads are stored with the sentinel value 0 and the raw text
// preserved for diagnosis; Save fails only on storage errors.
func (s *Store) Save(ctx context.Context, raw string) (models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, _ := ParsePayload(raw)
	recordedAt := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO readings (value, raw, recorded_at) VALUES (?, ?, ?)`,
		value, raw, recordedAt.UnixNano(),
	)
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to read insert id: %w", err)
	}

	if err := s.evictLocked(ctx, tx); err != nil {
		return models.Reading{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Reading{}, fmt.Errorf("failed to commit reading: %w", err)
	}

	return models.Reading{
		ID:         id,
		Value:      value,
		Raw:        raw,
		RecordedAt: recordedAt,
	}, nil
}

// evictLocked deletes the oldest rows in one pass when the table has grown
// past the retention window. Oldest means ascending recorded_at, ties
// broken by ascending id.
func (s *Store) evictLocked(ctx context.Context, tx *sql.Tx) error {
	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count readings: %w", err)
	}
	excess := count - int64(s.maxHistory)
	if excess <= 0 {
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM readings WHERE id IN (
			SELECT id FROM readings ORDER BY recorded_at ASC, id ASC LIMIT ?
		)`, excess)
	if err != nil {
		return fmt.Errorf("failed to evict old readings: %w", err)
	}

	if deleted, err := res.RowsAffected(); err == nil && deleted > 0 {
		metrics.StoreReadingsEvicted.Add(float64(deleted))
		logging.Debug().Int64("evicted", deleted).Msg("retention window enforced")
	}
	return nil
}

// History returns the most recent readings, newest first, bounded by limit.
// Limit range validation is the caller's responsibility.
func (s *Store) History(ctx context.Context, limit int) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, value, raw, recorded_at FROM readings
		ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	readings := make([]models.Reading, 0, limit)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return readings, nil
}

// Latest returns the most recent reading, or nil when the store is empty.
func (s *Store) Latest(ctx context.Context) (*models.Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, value, raw, recorded_at FROM readings
		ORDER BY recorded_at DESC, id DESC LIMIT 1`)

	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Stats returns aggregates over all stored readings. All fields are zero
// values when the store is empty; the mean is rounded to two decimals.
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	var minV, maxV sql.NullInt64
	var mean sql.NullFloat64
	var earliest, latest sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(value), MAX(value), AVG(value),
		       MIN(recorded_at), MAX(recorded_at)
		FROM readings`).
		Scan(&stats.Count, &minV, &maxV, &mean, &earliest, &latest)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}

	if stats.Count == 0 {
		return stats, nil
	}

	stats.Min = minV.Int64
	stats.Max = maxV.Int64
	stats.Mean = math.Round(mean.Float64*100) / 100
	e := time.Unix(0, earliest.Int64).UTC()
	l := time.Unix(0, latest.Int64).UTC()
	stats.Earliest = &e
	stats.Latest = &l
	return stats, nil
}

// Count returns the number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (models.Reading, error) {
	var (
		r     models.Reading
		nanos int64
	)
	if err := row.Scan(&r.ID, &r.Value, &r.Raw, &nanos); err != nil {
		if err == sql.ErrNoRows {
			return models.Reading{}, err
		}
		return models.Reading{}, fmt.Errorf("failed to scan reading: %w", err)
	}
	r.RecordedAt = time.Unix(0, nanos).UTC()
	return r, nil
}
