// Package session tracks the current user's identity and permission level,
// the single source of truth for "what can the current user do".
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/aviellagerev/shareterm/internal/account"
)

// State is the current session: who is logged in and at what level. It is
// mutated only by a permission_updated event about this user or by an
// explicit refresh response.
type State struct {
	Username   string
	Permission account.Permission
}

// Refresher re-reads the session's permission level from the server.
type Refresher interface {
	RefreshSession(ctx context.Context) (account.Permission, error)
}

// Guard owns the session state. Capabilities are always derived from the
// current permission (account.Permission methods), so every view reading
// through the guard recomputes them on change.
type Guard struct {
	mu    sync.RWMutex
	state State
}

// NewGuard creates a guard for a logged-in session.
func NewGuard(username string, permission account.Permission) *Guard {
	return &Guard{state: State{Username: username, Permission: permission}}
}

// Current returns a copy of the session state.
func (g *Guard) Current() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Username returns the logged-in username.
func (g *Guard) Username() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Username
}

// Permission returns the current permission level.
func (g *Guard) Permission() account.Permission {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Permission
}

// SetPermission applies a new permission level and reports whether it
// differs from the previous one.
func (g *Guard) SetPermission(p account.Permission) (previous account.Permission, changed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	previous = g.state.Permission
	if previous == p {
		return previous, false
	}
	g.state.Permission = p
	return previous, true
}

// IsSelf reports whether a permission_updated target names this session.
// The server's per-user queue omits the target identity, so an empty
// username is implicitly "you".
func (g *Guard) IsSelf(username string) bool {
	if username == "" {
		return true
	}
	return username == g.Username()
}

// Refresh reconciles the local permission with the server's. A failed
// refresh is fatal to the session: the caller must force a full logout
// rather than keep rendering with authorization state the server may no
// longer back.
func (g *Guard) Refresh(ctx context.Context, r Refresher) (account.Permission, error) {
	p, err := r.RefreshSession(ctx)
	if err != nil {
		return "", fmt.Errorf("session refresh failed: %w", err)
	}
	g.SetPermission(p)
	return p, nil
}
