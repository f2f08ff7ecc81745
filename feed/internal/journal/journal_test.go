package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	j, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	if err := j.Record(ctx, Attempt{Attempt: 1, Outcome: OutcomeNeedsLogin,
		URL: "https://login.example/", StartedAt: base, EndedAt: base.Add(time.Second)}); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(ctx, Attempt{Attempt: 2, Outcome: OutcomeAuthenticated,
		StartedAt: base.Add(time.Minute), EndedAt: base.Add(2 * time.Minute)}); err != nil {
		t.Fatal(err)
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("rows: got %d, want 2", len(got))
	}
	if got[0].Outcome != OutcomeAuthenticated || got[1].Outcome != OutcomeNeedsLogin {
		t.Fatalf("order: got %s, %s", got[0].Outcome, got[1].Outcome)
	}
	if !strings.HasPrefix(got[0].ID, "att_") {
		t.Errorf("ID: got %q, want att_ prefix", got[0].ID)
	}
	if got[1].URL != "https://login.example/" {
		t.Errorf("URL: got %q", got[1].URL)
	}
	if !got[1].StartedAt.Equal(base) {
		t.Errorf("StartedAt: got %v, want %v", got[1].StartedAt, base)
	}
}

func TestRecent_LimitAndEmpty(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("empty journal: got %v, want empty slice", got)
	}

	for i := 1; i <= 5; i++ {
		if err := j.Record(ctx, Attempt{Attempt: i, Outcome: OutcomeError, Error: "navigate failed"}); err != nil {
			t.Fatal(err)
		}
	}
	got, err = j.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("rows: got %d, want 3", len(got))
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "teamsfeed.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	if err := j.Record(context.Background(), Attempt{Attempt: 1, Outcome: OutcomeExhausted}); err != nil {
		t.Fatal(err)
	}

	var mode string
	if err := j.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode: got %q, want wal", mode)
	}
}
