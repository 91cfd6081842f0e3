package ui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/history"
)

// A failed history query must leave the screen usable: resizes and
// renders still happen while the error is shown.
func TestHistoryScreenSurvivesFailedLoad(t *testing.T) {
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo := history.NewRepo(db.DB)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	m := newHistoryModel(&app.App{History: repo})
	if m.err == nil {
		t.Fatal("expected a load error from the closed database")
	}

	m.SetSize(80, 24)

	if got := m.View(); !strings.Contains(got, "History error") {
		t.Fatalf("view = %q", got)
	}
}

func TestHistoryScreenRecoversOnReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := history.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	repo := history.NewRepo(db.DB)
	if err := repo.Record(history.Entry{Action: history.ActionUpload, Filename: "a.txt", Succeeded: true}); err != nil {
		t.Fatalf("record: %v", err)
	}

	m := newHistoryModel(&app.App{History: repo})
	m.SetSize(80, 24)
	m.err = errors.New("stale")
	m.reload()
	if m.err != nil {
		t.Fatalf("reload did not clear the error: %v", m.err)
	}
	if got := m.View(); !strings.Contains(got, "a.txt") {
		t.Fatalf("view = %q", got)
	}
}
