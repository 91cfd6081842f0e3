package history

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db.DB)

	entries := []Entry{
		{Action: ActionUpload, Filename: "a.txt", Size: 10, Actor: "alice", Succeeded: true},
		{Action: ActionDelete, Filename: "b.txt", Actor: "alice", Succeeded: true},
		{Action: ActionUpload, Filename: "c.txt", Size: 99, Actor: "alice", Detail: "too large", Succeeded: false},
	}
	for _, e := range entries {
		if err := repo.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Newest first.
	if got[0].Filename != "c.txt" || got[0].Succeeded {
		t.Fatalf("newest = %+v", got[0])
	}
	if got[2].Action != ActionUpload || got[2].Size != 10 {
		t.Fatalf("oldest = %+v", got[2])
	}
}

func TestRecentLimit(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db.DB)

	for i := 0; i < 5; i++ {
		if err := repo.Record(Entry{Action: ActionDownload, Filename: "f", Succeeded: true}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}
