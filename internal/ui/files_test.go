package ui

import (
	"testing"

	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/reconcile"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

// The delete command already reports its own outcome, so the echoed
// file_deleted event must not produce a second notice.
func TestFilesScreenSuppressesOwnDeleteNotice(t *testing.T) {
	m := newFilesModel(&app.App{Files: sharefile.NewStore()})

	m.Refresh(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "mine.txt", Self: true})
	if m.notice != "" {
		t.Fatalf("own delete raised notice %q", m.notice)
	}

	m.Refresh(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "theirs.txt"})
	if m.notice == "" {
		t.Fatal("another user's delete should be surfaced")
	}
}
