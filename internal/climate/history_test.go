package climate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupHistoryTestDB creates an in-memory SQLite database with the
// climate_state_history table.
func setupHistoryTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE climate_state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pair_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_climate_state_history_pair ON climate_state_history(pair_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// insertHistoryRow inserts a history row with a specific timestamp.
func insertHistoryRow(t *testing.T, db *sql.DB, pairID, stateJSON string, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO climate_state_history (pair_id, state, created_at) VALUES (?, ?, ?)",
		pairID,
		stateJSON,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert history row: %v", err)
	}
}

// TestHistoryRecordAndGet verifies writes and retrieval round-trip.
func TestHistoryRecordAndGet(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	state := CompositeState{
		Available:          true,
		CurrentTemperature: fptr(21.5),
		MinTemp:            7.0,
		MaxTemp:            35.0,
		Sources: map[Capability]string{
			CapTemperatureRead: "matter",
		},
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.RecordStateChange(ctx, "pair-1", state); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "pair-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.PairID != "pair-1" {
		t.Errorf("PairID = %q, want pair-1", entry.PairID)
	}
	if entry.State.CurrentTemperature == nil || *entry.State.CurrentTemperature != 21.5 {
		t.Errorf("State.CurrentTemperature = %v, want 21.5", entry.State.CurrentTemperature)
	}
	if entry.State.Sources[CapTemperatureRead] != "matter" {
		t.Errorf("source label = %q, want matter", entry.State.Sources[CapTemperatureRead])
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

// TestHistoryRequiresPairID verifies empty pair IDs are rejected.
func TestHistoryRequiresPairID(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	if err := repo.RecordStateChange(ctx, "", CompositeState{}); err == nil {
		t.Error("RecordStateChange(empty) error = nil, want error")
	}
	if _, err := repo.GetHistory(ctx, "", 10); err == nil {
		t.Error("GetHistory(empty) error = nil, want error")
	}
}

// TestHistoryOrderingAndLimit verifies newest-first ordering and clamping.
func TestHistoryOrderingAndLimit(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		insertHistoryRow(t, db, "pair-1", `{"available":true}`, base.Add(time.Duration(i)*time.Minute))
	}
	insertHistoryRow(t, db, "pair-2", `{"available":false}`, base)

	entries, err := repo.GetHistory(ctx, "pair-1", 3)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries length = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Errorf("entries not ordered newest first at index %d", i)
		}
	}

	// Zero limit falls back to the default; pair filtering holds.
	all, err := repo.GetHistory(ctx, "pair-1", 0)
	if err != nil {
		t.Fatalf("GetHistory(0) error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("entries length = %d, want 5", len(all))
	}
}

// TestHistoryPrune verifies old entries are deleted.
func TestHistoryPrune(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	insertHistoryRow(t, db, "pair-1", `{"available":true}`, now.Add(-48*time.Hour))
	insertHistoryRow(t, db, "pair-1", `{"available":true}`, now)

	deleted, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) error = nil, want error")
	}
}
