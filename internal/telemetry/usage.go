// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides local usage statistics for routerchat.
package telemetry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed indicates the usage store has been closed.
	ErrClosed = errors.New("usage store closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at INTEGER NOT NULL,
	conversation_id TEXT NOT NULL,
	model_id TEXT NOT NULL,
	prompt_chars INTEGER NOT NULL,
	reply_chars INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	failed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_exchanges_model ON exchanges(model_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_recorded ON exchanges(recorded_at);
`

// =============================================================================
// USAGE STORE
// =============================================================================

// Exchange is one recorded prompt/reply round trip.
type Exchange struct {
	RecordedAt     time.Time
	ConversationID string
	ModelID        string
	PromptChars    int
	ReplyChars     int
	Duration       time.Duration
	Failed         bool
}

// ModelUsage aggregates usage for a single model.
type ModelUsage struct {
	ModelID     string
	Exchanges   int
	Failures    int
	PromptChars int64
	ReplyChars  int64
	TotalTime   time.Duration
}

// Store records chat usage in a local SQLite database. Stats never
// leave the machine.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens (or creates) the usage database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Record stores one exchange. A zero RecordedAt defaults to now.
func (s *Store) Record(ex Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	recordedAt := ex.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	failed := 0
	if ex.Failed {
		failed = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO exchanges (recorded_at, conversation_id, model_id, prompt_chars, reply_chars, duration_ms, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		recordedAt.Unix(), ex.ConversationID, ex.ModelID,
		ex.PromptChars, ex.ReplyChars, ex.Duration.Milliseconds(), failed,
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// ByModel returns aggregated usage per model, most used first.
func (s *Store) ByModel() ([]ModelUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(
		`SELECT model_id, COUNT(*), SUM(failed), SUM(prompt_chars), SUM(reply_chars), SUM(duration_ms)
		 FROM exchanges GROUP BY model_id ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var out []ModelUsage
	for rows.Next() {
		var u ModelUsage
		var durationMS int64
		if err := rows.Scan(&u.ModelID, &u.Exchanges, &u.Failures, &u.PromptChars, &u.ReplyChars, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		u.TotalTime = time.Duration(durationMS) * time.Millisecond
		out = append(out, u)
	}
	return out, rows.Err()
}

// Totals returns the overall exchange and failure counts.
func (s *Store) Totals() (exchanges, failures int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0, ErrClosed
	}

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(failed), 0) FROM exchanges`)
	if err := row.Scan(&exchanges, &failures); err != nil {
		return 0, 0, fmt.Errorf("failed to query totals: %w", err)
	}
	return exchanges, failures, nil
}

// Since returns exchanges recorded at or after the given time, newest
// first.
func (s *Store) Since(t time.Time) ([]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(
		`SELECT recorded_at, conversation_id, model_id, prompt_chars, reply_chars, duration_ms, failed
		 FROM exchanges WHERE recorded_at >= ? ORDER BY recorded_at DESC`,
		t.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var recordedAt, durationMS int64
		var failed int
		if err := rows.Scan(&recordedAt, &ex.ConversationID, &ex.ModelID, &ex.PromptChars, &ex.ReplyChars, &durationMS, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan exchange row: %w", err)
		}
		ex.RecordedAt = time.Unix(recordedAt, 0)
		ex.Duration = time.Duration(durationMS) * time.Millisecond
		ex.Failed = failed != 0
		out = append(out, ex)
	}
	return out, rows.Err()
}
