// Package storage persists the planner state as a single versioned JSON
// snapshot in SQLite. The engine replaces the whole world on every
// accepted command, so the store follows suit and writes wholesale.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"trezo/internal/engine"

	_ "modernc.org/sqlite"
)

type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load returns the persisted state. A missing or unparseable snapshot
// falls back to the seed state so the planner always starts usable; the
// corrupt payload is logged, never silently overwritten until the next
// successful Save.
func (s *SnapshotStore) Load(ctx context.Context) (engine.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		slog.InfoContext(ctx, "No snapshot found, starting from seed state")
		return engine.Seed(), nil
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("read snapshot: %w", err)
	}

	var state engine.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		slog.ErrorContext(ctx, "Snapshot unparseable, starting from seed state", "error", err)
		return engine.Seed(), nil
	}
	return state.Normalize(), nil
}

// Save writes the complete state wholesale.
func (s *SnapshotStore) Save(ctx context.Context, state engine.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, data, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		string(data))
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved", "bytes", len(data))
	return nil
}
