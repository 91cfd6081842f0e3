// Package reconcile applies inbound stream events to the local stores and
// the session guard. Reconciliation is idempotent: applying a duplicate
// event yields the same state as applying it once.
package reconcile

import (
	"sync"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/event"
	"github.com/aviellagerev/shareterm/internal/session"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

// ChangeKind describes what a reconciled event did to local state.
type ChangeKind int

const (
	// ChangeSnapshot replaced the whole file collection (init event).
	ChangeSnapshot ChangeKind = iota
	// ChangeFileAdded inserted or refreshed a file record.
	ChangeFileAdded
	// ChangeFileRemoved removed a file record (or confirmed its absence).
	ChangeFileRemoved
	// ChangeUserAdded inserted a roster row.
	ChangeUserAdded
	// ChangeUserRemoved removed a roster row.
	ChangeUserRemoved
	// ChangeUserPermission updated another user's roster row.
	ChangeUserPermission
	// ChangeOwnPermission updated this session's permission level.
	ChangeOwnPermission
)

// Change is the outcome of reconciling one event, for notification fan-out
// and view updates.
type Change struct {
	Kind ChangeKind

	File     sharefile.Record // ChangeFileAdded
	Filename string           // ChangeFileAdded, ChangeFileRemoved
	User     event.UserChange // user-directed kinds

	// Self marks a change caused by this session's own prior action
	// (e.g. a file_added whose uploader is the logged-in user), so the
	// view can suppress the redundant notification.
	Self bool
	// Refreshed marks a file_added that replaced an existing record
	// instead of inserting a new one.
	Refreshed bool

	// Permission/Previous carry the ChangeOwnPermission transition.
	Permission account.Permission
	Previous   account.Permission
}

// Reconciler is a pure dispatcher from decoded events to store and session
// mutations. It is the sole writer for collection membership: the action
// dispatcher never touches the stores, so self-initiated and remote changes
// share one path.
type Reconciler struct {
	files *sharefile.Store
	users *account.Store
	guard *session.Guard

	// file_deleted events carry no actor, so deletes issued by this
	// session are remembered by filename until their echo arrives.
	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a reconciler over the given stores and guard. The users store
// may be nil when the admin view is never loaded; user-roster events then
// degrade to no-ops.
func New(files *sharefile.Store, users *account.Store, guard *session.Guard) *Reconciler {
	return &Reconciler{
		files:   files,
		users:   users,
		guard:   guard,
		pending: make(map[string]struct{}),
	}
}

// ExpectRemoval records that this session deleted filename, so the echoed
// file_deleted event reconciles as self-originated. Safe to call from the
// dispatcher while the stream loop applies events.
func (r *Reconciler) ExpectRemoval(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[filename] = struct{}{}
}

func (r *Reconciler) selfRemoval(filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[filename]; !ok {
		return false
	}
	delete(r.pending, filename)
	return true
}

// Apply reconciles one event. The boolean reports whether the event was
// understood and produced a change worth broadcasting; unknown kinds return
// false and are otherwise ignored.
func (r *Reconciler) Apply(e event.Event) (Change, bool) {
	switch e.Kind {
	case event.KindInit:
		r.files.Replace(e.Files)
		return Change{Kind: ChangeSnapshot}, true

	case event.KindFileAdded:
		if e.File == nil {
			return Change{}, false
		}
		_, present := r.files.Get(e.File.Filename)
		r.files.Upsert(*e.File)
		return Change{
			Kind:      ChangeFileAdded,
			File:      *e.File,
			Filename:  e.File.Filename,
			Self:      e.File.Uploader == r.guard.Username(),
			Refreshed: present,
		}, true

	case event.KindFileDeleted:
		if e.File == nil {
			return Change{}, false
		}
		// Absent filenames are fine: the delete may be a duplicate, or
		// the event may echo this client's own action.
		r.files.Remove(e.File.Filename)
		return Change{
			Kind:     ChangeFileRemoved,
			Filename: e.File.Filename,
			Self:     r.selfRemoval(e.File.Filename),
		}, true

	case event.KindUserRegistered:
		if e.User == nil {
			return Change{}, false
		}
		if r.users != nil {
			r.users.Upsert(account.User{
				ID:         e.User.ID,
				Username:   e.User.Username,
				Permission: e.User.Permission,
			})
		}
		return Change{Kind: ChangeUserAdded, User: *e.User}, true

	case event.KindUserDeleted:
		if e.User == nil {
			return Change{}, false
		}
		if r.users != nil {
			r.users.Remove(e.User.ID)
		}
		return Change{Kind: ChangeUserRemoved, User: *e.User}, true

	case event.KindPermissionUpdated:
		if e.User == nil {
			return Change{}, false
		}
		if r.guard.IsSelf(e.User.Username) {
			previous, _ := r.guard.SetPermission(e.User.Permission)
			return Change{
				Kind:       ChangeOwnPermission,
				User:       *e.User,
				Self:       true,
				Permission: e.User.Permission,
				Previous:   previous,
			}, true
		}
		// About someone else: only their roster row, never this session.
		if r.users != nil {
			r.users.SetPermission(e.User.ID, e.User.Permission)
		}
		return Change{Kind: ChangeUserPermission, User: *e.User}, true
	}

	return Change{}, false
}
