package storage

import (
	"context"
	"path/filepath"
	"testing"

	"trezo/internal/engine"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "trezo.db"))
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotStore_LoadEmptyReturnsSeed(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Projects) == 0 {
		t.Fatal("seed state has no projects")
	}
	if len(state.Categories.Expense) == 0 || len(state.Categories.Revenue) == 0 {
		t.Error("seed state missing category tree")
	}
}

func TestSnapshotStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := engine.Seed()
	state.Projects[0].Name = "Renamed"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Projects[0].Name != "Renamed" {
		t.Errorf("project name = %q, want Renamed", loaded.Projects[0].Name)
	}
	if loaded.Projects[0].ID != state.Projects[0].ID {
		t.Error("project id changed over round trip")
	}

	// Second save overwrites the single snapshot row.
	state.Projects[0].Name = "Renamed twice"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	loaded, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if loaded.Projects[0].Name != "Renamed twice" {
		t.Errorf("project name = %q, want Renamed twice", loaded.Projects[0].Name)
	}
}

func TestSnapshotStore_CorruptSnapshotFallsBackToSeed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.db.ExecContext(ctx, `INSERT INTO snapshots (id, data) VALUES (1, 'not json')`); err != nil {
		t.Fatalf("inject corrupt row: %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Projects) == 0 {
		t.Fatal("fallback state has no projects")
	}
}
