package account

import (
	"sort"
	"sync"
)

// Store is the admin view's in-memory user roster, keyed by user id.
// Like the file store, it is written only by the reconciler and read by the
// render path.
type Store struct {
	mu    sync.RWMutex
	order []int // user ids in arrival order
	users map[int]User
}

// NewStore creates an empty roster.
func NewStore() *Store {
	return &Store{users: make(map[int]User)}
}

// Upsert inserts or replaces the user row for u.ID.
func (s *Store) Upsert(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		s.order = append(s.order, u.ID)
	}
	s.users[u.ID] = u
}

// Remove deletes the row for the given id; absent ids are a no-op.
func (s *Store) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return
	}
	delete(s.users, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetPermission updates the permission of an existing row. Updating an
// unknown id is a no-op: the roster may simply not be loaded.
func (s *Store) SetPermission(id int, p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return
	}
	u.Permission = p
	s.users[id] = u
}

// Replace swaps the roster for the given snapshot.
func (s *Store) Replace(users []User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.users = make(map[int]User, len(users))
	for _, u := range users {
		if _, ok := s.users[u.ID]; !ok {
			s.order = append(s.order, u.ID)
		}
		s.users[u.ID] = u
	}
}

// Get returns the user with the given id, if present.
func (s *Store) Get(id int) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Len returns the number of roster rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// SortedView returns the roster ordered by user id, as a fresh copy.
func (s *Store) SortedView() []User {
	s.mu.RLock()
	view := make([]User, 0, len(s.order))
	for _, id := range s.order {
		view = append(view, s.users[id])
	}
	s.mu.RUnlock()

	sort.SliceStable(view, func(i, j int) bool { return view[i].ID < view[j].ID })
	return view
}
