// CLAUDE:SUMMARY SQLite journal of session establishment attempts (authenticated, needs_login, login_failed, exhausted).
// Package journal records every session establishment attempt in SQLite so
// an operator can see why a feed went dark. Scraped threads are never
// stored.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Outcome values written by the session manager.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeNeedsLogin    = "needs_login"
	OutcomeLoginFailed   = "login_failed"
	OutcomeError         = "error"
	OutcomeExhausted     = "exhausted"
)

// Attempt is one journaled attempt.
type Attempt struct {
	ID        string    `json:"id"`
	Attempt   int       `json:"attempt"`
	Outcome   string    `json:"outcome"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Journal persists attempts.
type Journal struct {
	db    *sql.DB
	newID func() string
}

// Open opens (creating if needed) the journal database at path with WAL
// and a busy timeout, then applies the schema.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}

	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an open database and applies the schema.
func New(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Journal{
		db:    db,
		newID: func() string { return "att_" + uuid.Must(uuid.NewV7()).String() },
	}, nil
}

// Record stores a. A missing ID or EndedAt is filled in.
func (j *Journal) Record(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		a.ID = j.newID()
	}
	if a.EndedAt.IsZero() {
		a.EndedAt = time.Now()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = a.EndedAt
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO session_attempts (attempt_id, attempt, outcome, url, error, started_at, ended_at)
		VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Attempt, a.Outcome, a.URL, a.Error,
		a.StartedAt.UnixMilli(), a.EndedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first. limit <= 0 means 50.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT attempt_id, attempt, outcome, url, error, started_at, ended_at
		FROM session_attempts
		ORDER BY ended_at DESC, attempt_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		var started, ended int64
		if err := rows.Scan(&a.ID, &a.Attempt, &a.Outcome, &a.URL, &a.Error, &started, &ended); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		a.StartedAt = time.UnixMilli(started)
		a.EndedAt = time.UnixMilli(ended)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
