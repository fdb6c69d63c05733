// Package journal records confirmed wake triggers in a local SQLite
// database so users can audit what woke the assistant and when.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/normanking/hotword/pkg/wake"
)

const schema = `
CREATE TABLE IF NOT EXISTS wake_events (
	id           TEXT PRIMARY KEY,
	phrase       TEXT NOT NULL,
	fragment     TEXT NOT NULL,
	distance     INTEGER NOT NULL,
	triggered_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wake_events_triggered_at
	ON wake_events(triggered_at DESC);
`

// defaultRecentLimit bounds Recent queries that pass no explicit limit.
const defaultRecentLimit = 50

// Entry is one recorded wake trigger.
type Entry struct {
	ID          string    `json:"id"`
	Phrase      string    `json:"phrase"`
	Fragment    string    `json:"fragment"`
	Distance    int       `json:"distance"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Journal persists wake triggers. Safe for concurrent use; the connection
// pool is capped at one connection, SQLite's single-writer sweet spot.
type Journal struct {
	db     *sql.DB
	retain int
}

// Open opens or creates the journal database at path. retain caps how many
// entries are kept after each write; zero keeps all.
func Open(path string, retain int) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: initialize schema: %w", err)
	}

	return &Journal{db: db, retain: retain}, nil
}

// Record stores a wake trigger and prunes entries beyond the retain cap.
func (j *Journal) Record(ctx context.Context, tr wake.Trigger) (Entry, error) {
	e := Entry{
		ID:          uuid.NewString(),
		Phrase:      tr.Phrase,
		Fragment:    tr.Fragment,
		Distance:    tr.Distance,
		TriggeredAt: tr.At,
	}
	if e.TriggeredAt.IsZero() {
		e.TriggeredAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO wake_events (id, phrase, fragment, distance, triggered_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Phrase, e.Fragment, e.Distance, e.TriggeredAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: insert wake event: %w", err)
	}

	if j.retain > 0 {
		if _, err := j.Prune(ctx); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// uses the default.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, phrase, fragment, distance, triggered_at
		 FROM wake_events
		 ORDER BY triggered_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query wake events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Phrase, &e.Fragment, &e.Distance, &e.TriggeredAt); err != nil {
			return nil, fmt.Errorf("journal: scan wake event: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate wake events: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wake_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count wake events: %w", err)
	}
	return n, nil
}

// Prune deletes entries beyond the retain cap, oldest first, and returns
// how many were removed. A zero cap is a no-op.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	if j.retain <= 0 {
		return 0, nil
	}

	res, err := j.db.ExecContext(ctx,
		`DELETE FROM wake_events
		 WHERE rowid NOT IN (
			SELECT rowid FROM wake_events
			ORDER BY triggered_at DESC, rowid DESC
			LIMIT ?
		 )`, j.retain)
	if err != nil {
		return 0, fmt.Errorf("journal: prune wake events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune rows affected: %w", err)
	}
	return n, nil
}

// Close flushes the WAL and closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: WAL checkpoint failed: %v\n", err)
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close database: %w", err)
	}
	j.db = nil
	return nil
}
