// Package event defines the typed messages delivered over the server-push
// stream and their wire decoding.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

// Kind discriminates the stream payloads.
type Kind string

const (
	KindInit              Kind = "init"
	KindFileAdded         Kind = "file_added"
	KindFileDeleted       Kind = "file_deleted"
	KindUserRegistered    Kind = "user_registered"
	KindUserDeleted       Kind = "user_deleted"
	KindPermissionUpdated Kind = "permission_updated"
)

// Known reports whether the kind is one this client understands. Unknown
// kinds are ignored by dispatch for forward compatibility.
func (k Kind) Known() bool {
	switch k {
	case KindInit, KindFileAdded, KindFileDeleted,
		KindUserRegistered, KindUserDeleted, KindPermissionUpdated:
		return true
	}
	return false
}

// UserChange is the payload of the user-directed events. For
// permission_updated sent over a per-user queue the server omits the target
// identity: an empty Username means the event is about the receiving session.
type UserChange struct {
	ID         int
	Username   string
	Permission account.Permission
}

// Event is one decoded stream message.
type Event struct {
	Kind      Kind
	File      *sharefile.Record  // file_added, file_deleted
	Files     []sharefile.Record // init snapshot
	User      *UserChange        // user_registered, user_deleted, permission_updated
	Timestamp time.Time
}

type wireFile struct {
	Filename   string `json:"filename"`
	Uploader   string `json:"uploader"`
	UploadTime string `json:"upload_time"`
	Size       int64  `json:"size"`
}

type wireUser struct {
	ID            int    `json:"id"`
	Username      string `json:"username"`
	Permissions   string `json:"permissions"`
	NewPermission string `json:"new_permission"`
}

type wireEvent struct {
	Type      string     `json:"type"`
	File      *wireFile  `json:"file"`
	Data      *wireUser  `json:"data"`
	Files     []wireFile `json:"files"`
	Timestamp float64    `json:"timestamp"`
}

// Decode parses one JSON stream message. A decode error means the payload is
// malformed and should be dropped without tearing down the connection.
func Decode(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if w.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}

	e := Event{Kind: Kind(w.Type)}
	if w.Timestamp > 0 {
		sec := int64(w.Timestamp)
		e.Timestamp = time.Unix(sec, int64((w.Timestamp-float64(sec))*1e9))
	}
	if !e.Kind.Known() {
		return e, nil
	}

	switch e.Kind {
	case KindInit:
		e.Files = make([]sharefile.Record, 0, len(w.Files))
		for _, f := range w.Files {
			e.Files = append(e.Files, f.record())
		}
	case KindFileAdded, KindFileDeleted:
		if w.File == nil {
			return Event{}, fmt.Errorf("decode %s: missing file payload", w.Type)
		}
		r := w.File.record()
		e.File = &r
	case KindUserRegistered:
		if w.Data == nil {
			return Event{}, fmt.Errorf("decode %s: missing data payload", w.Type)
		}
		e.User = &UserChange{
			ID:         w.Data.ID,
			Username:   w.Data.Username,
			Permission: account.ParsePermission(w.Data.Permissions),
		}
	case KindUserDeleted:
		if w.Data == nil {
			return Event{}, fmt.Errorf("decode %s: missing data payload", w.Type)
		}
		e.User = &UserChange{ID: w.Data.ID, Username: w.Data.Username}
	case KindPermissionUpdated:
		if w.Data == nil {
			return Event{}, fmt.Errorf("decode %s: missing data payload", w.Type)
		}
		e.User = &UserChange{
			ID:         w.Data.ID,
			Username:   w.Data.Username,
			Permission: account.ParsePermission(w.Data.NewPermission),
		}
	}
	return e, nil
}

// uploadTimeLayouts covers both RFC 3339 timestamps and the timezone-less
// ISO-8601 form the backend emits.
var uploadTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (f wireFile) record() sharefile.Record {
	r := sharefile.Record{
		Filename: f.Filename,
		Uploader: f.Uploader,
		Size:     f.Size,
	}
	r.UploadTime = ParseUploadTime(f.UploadTime)
	return r
}

// ParseUploadTime parses the server's upload_time string. An unparseable
// value yields the zero time; the record is still usable.
func ParseUploadTime(s string) time.Time {
	for _, layout := range uploadTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
