package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupAuditTestDB creates an in-memory SQLite database with the audit_logs table.
func setupAuditTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			user TEXT,
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_audit_logs_created ON audit_logs(created_at DESC);
		CREATE INDEX idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
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

// TestRecordAndList verifies the persistence round-trip including details JSON.
func TestRecordAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupAuditTestDB(t))
	ctx := context.Background()

	entry := &Entry{
		Action:   ActionPairCreated,
		Entity:   EntityPair,
		EntityID: "p1",
		User:     "admin",
		Details:  map[string]any{"name": "Living Room"},
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("Record() did not generate an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Record() did not set CreatedAt")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List() total = %d, entries = %d, want 1/1", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.Action != ActionPairCreated || got.Entity != EntityPair {
		t.Errorf("entry = %+v", got)
	}
	if got.User != "admin" || got.EntityID != "p1" {
		t.Errorf("entry user/entity_id = %q/%q", got.User, got.EntityID)
	}
	if got.Details["name"] != "Living Room" {
		t.Errorf("details = %v", got.Details)
	}
}

// TestListFilters verifies action, entity type, and entity ID filtering.
func TestListFilters(t *testing.T) {
	repo := NewSQLiteRepository(setupAuditTestDB(t))
	ctx := context.Background()

	entries := []*Entry{
		{Action: ActionPairCreated, Entity: EntityPair, EntityID: "p1"},
		{Action: ActionPairDeleted, Entity: EntityPair, EntityID: "p1"},
		{Action: ActionCommandDispatched, Entity: EntityPair, EntityID: "p2"},
		{Action: ActionLogin, Entity: EntityAuth, User: "admin"},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	byAction, err := repo.List(ctx, Filter{Action: ActionPairDeleted})
	if err != nil {
		t.Fatalf("List(action) error = %v", err)
	}
	if byAction.Total != 1 || byAction.Entries[0].Action != ActionPairDeleted {
		t.Errorf("List(action) = %+v", byAction)
	}

	byEntity, err := repo.List(ctx, Filter{Entity: EntityAuth})
	if err != nil {
		t.Fatalf("List(entity) error = %v", err)
	}
	if byEntity.Total != 1 || byEntity.Entries[0].User != "admin" {
		t.Errorf("List(entity) = %+v", byEntity)
	}

	byID, err := repo.List(ctx, Filter{EntityID: "p1"})
	if err != nil {
		t.Fatalf("List(entity_id) error = %v", err)
	}
	if byID.Total != 2 {
		t.Errorf("List(entity_id) total = %d, want 2", byID.Total)
	}
}

// TestListPagination verifies limit clamping and offset behaviour.
func TestListPagination(t *testing.T) {
	repo := NewSQLiteRepository(setupAuditTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := &Entry{
			Action:    ActionCommandDispatched,
			Entity:    EntityPair,
			EntityID:  "p1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Record(ctx, entry); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 5 || len(page.Entries) != 2 {
		t.Fatalf("List() total = %d, entries = %d, want 5/2", page.Total, len(page.Entries))
	}
	// Most recent first, offset skips the newest.
	if !page.Entries[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("first entry created_at = %v", page.Entries[0].CreatedAt)
	}

	clamped, err := repo.List(ctx, Filter{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if clamped.Limit != 200 || clamped.Offset != 0 {
		t.Errorf("List() limit/offset = %d/%d, want 200/0", clamped.Limit, clamped.Offset)
	}
}
