package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aviellagerev/shareterm/internal/history"
	"github.com/aviellagerev/shareterm/internal/notify"
	"github.com/aviellagerev/shareterm/internal/reconcile"
)

// The delete call site records its own outcome, so the echoed stream
// change must not add a second row.
func TestStreamHistorySkipsOwnDelete(t *testing.T) {
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	a := &App{
		DB:      db,
		History: history.NewRepo(db.DB),
		Broker:  notify.NewBroker(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.recordStreamChanges(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for a.Broker.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("history recorder never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Same subscriber channel, so theirs.txt landing proves mine.txt
	// was already processed.
	a.Broker.Publish(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "mine.txt", Self: true})
	a.Broker.Publish(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "theirs.txt"})

	for {
		entries, err := a.History.Recent(10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(entries) > 0 {
			if len(entries) != 1 || entries[0].Filename != "theirs.txt" || entries[0].Action != history.ActionRemoved {
				t.Fatalf("entries = %+v", entries)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("remote delete never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
