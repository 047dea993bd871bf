// Package store persists the last known-good scope state in SQLite so a
// restart resumes from where the previous run left off instead of from an
// empty table.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tallydesk/election-poller/internal/tally"
)

const schema = `
CREATE TABLE IF NOT EXISTS scope_state (
	level      TEXT NOT NULL,
	scope_id   TEXT NOT NULL,
	category   TEXT NOT NULL,
	progress   REAL NOT NULL,
	rows       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (level, scope_id, category)
);`

// Store is a SQLite-backed snapshot of the state table.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads every persisted scope back into memory.
func (s *Store) Load(ctx context.Context) (map[tally.ScopeKey]tally.ScopeState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, scope_id, category, progress, rows FROM scope_state`)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()

	out := make(map[tally.ScopeKey]tally.ScopeState)
	for rows.Next() {
		var (
			key      tally.ScopeKey
			level    string
			progress float64
			encoded  string
		)
		if err := rows.Scan(&level, &key.ScopeID, &key.Category, &progress, &encoded); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		key.Level = tally.Level(level)

		var entries []tally.Entry
		if err := json.Unmarshal([]byte(encoded), &entries); err != nil {
			return nil, fmt.Errorf("store: decode rows for %s: %w", key, err)
		}
		out[key] = tally.ScopeState{Entries: entries, Progress: progress}
	}
	return out, rows.Err()
}

// Save upserts the full state table in one transaction.
func (s *Store) Save(ctx context.Context, snapshot map[tally.ScopeKey]tally.ScopeState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scope_state (level, scope_id, category, progress, rows, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (level, scope_id, category) DO UPDATE SET
			progress = excluded.progress,
			rows = excluded.rows,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for key, state := range snapshot {
		encoded, err := json.Marshal(state.Entries)
		if err != nil {
			return fmt.Errorf("store: encode rows for %s: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx,
			string(key.Level), key.ScopeID, key.Category,
			state.Progress, string(encoded), now); err != nil {
			return fmt.Errorf("store: upsert %s: %w", key, err)
		}
	}
	return tx.Commit()
}
