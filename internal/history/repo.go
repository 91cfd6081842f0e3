package history

import (
	"database/sql"
	"fmt"
	"time"
)

// Actions recorded in the transfer log.
const (
	ActionUpload   = "upload"
	ActionDownload = "download"
	ActionDelete   = "delete"
	ActionReceived = "received" // another user's file arrived via the stream
	ActionRemoved  = "removed"  // another user's delete arrived via the stream
)

// Entry is one row of the local transfer history.
type Entry struct {
	ID        int
	Action    string
	Filename  string
	Size      int64
	Actor     string
	Detail    string
	Succeeded bool
	CreatedAt time.Time
}

// Repo handles database operations for the transfer log.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a new history repository.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Record appends an entry to the transfer log.
func (r *Repo) Record(e Entry) error {
	_, err := r.db.Exec(`
		INSERT INTO transfer_log (action, filename, size, actor, detail, succeeded)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Action, e.Filename, e.Size, e.Actor, e.Detail, e.Succeeded)
	if err != nil {
		return fmt.Errorf("record %s of %s: %w", e.Action, e.Filename, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *Repo) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, action, filename, size, actor, detail, succeeded, created_at
		FROM transfer_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load transfer log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Filename, &e.Size, &e.Actor, &e.Detail, &e.Succeeded, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the cutoff. Returns rows removed.
func (r *Repo) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := r.db.Exec("DELETE FROM transfer_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune transfer log: %w", err)
	}
	return res.RowsAffected()
}
