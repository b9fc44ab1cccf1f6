package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"lobby-scout/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE encounters (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		opaque_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		character_id INTEGER NOT NULL,
		team INTEGER NOT NULL,
		seen_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestRecordAssignsID(t *testing.T) {
	repo := NewEncounterRepository(newTestDB(t), zerolog.Nop())

	enc := &domain.Encounter{
		SessionID:   "s1",
		OpaqueID:    "p1",
		DisplayName: "Alice",
		CharacterID: 64,
		Team:        1,
	}
	if err := repo.Record(context.Background(), enc); err != nil {
		t.Fatalf("record: %v", err)
	}
	if enc.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if enc.SeenAt.IsZero() {
		t.Fatalf("expected seen_at to be set")
	}
}

func TestCountExcludesCurrentSession(t *testing.T) {
	repo := NewEncounterRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	for _, session := range []string{"s1", "s2", "s3"} {
		enc := &domain.Encounter{SessionID: session, OpaqueID: "p1", DisplayName: "Alice", CharacterID: 1, Team: 1, SeenAt: time.Now()}
		if err := repo.Record(ctx, enc); err != nil {
			t.Fatalf("record %s: %v", session, err)
		}
	}

	count, err := repo.CountForPlayer(ctx, "p1", "s3")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count: got %d, want 2", count)
	}

	count, err = repo.CountForPlayer(ctx, "unknown", "s3")
	if err != nil {
		t.Fatalf("count unknown: %v", err)
	}
	if count != 0 {
		t.Fatalf("count for unseen player: got %d, want 0", count)
	}
}

func TestRecentForPlayerNewestFirst(t *testing.T) {
	repo := NewEncounterRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		enc := &domain.Encounter{
			SessionID:   "s1",
			OpaqueID:    "p1",
			DisplayName: "Alice",
			CharacterID: i,
			Team:        1,
			SeenAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Record(ctx, enc); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recent, err := repo.RecentForPlayer(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent: got %d rows, want 2", len(recent))
	}
	if recent[0].CharacterID != 2 || recent[1].CharacterID != 1 {
		t.Fatalf("expected newest first, got characters %d, %d", recent[0].CharacterID, recent[1].CharacterID)
	}
}
