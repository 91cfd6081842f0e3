package sharefile

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// SortKey selects the ordering of SortedView.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByUploader SortKey = "uploader"
	SortBySize     SortKey = "size"
	SortByDate     SortKey = "date"
	SortByType     SortKey = "type"
)

// DefaultSort is the ordering used when no key has been chosen.
const DefaultSort = SortByDate

// ParseSortKey maps a string to a SortKey, falling back to DefaultSort for
// anything unrecognized.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByName, SortByUploader, SortBySize, SortByDate, SortByType:
		return SortKey(strings.ToLower(strings.TrimSpace(s)))
	default:
		return DefaultSort
	}
}

// Store is the in-memory collection of file records the view renders from.
// It holds at most one record per filename. List membership is only ever
// mutated by the reconciler; the render path reads freely through SortedView.
type Store struct {
	mu      sync.RWMutex
	order   []string          // filenames in arrival order, for stable ties
	records map[string]Record // keyed by filename
}

// NewStore creates an empty file store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Upsert inserts the record if its filename is absent, otherwise replaces
// the stored record in place. A replacement keeps the record's position in
// arrival order, so a metadata refresh never reshuffles ties.
func (s *Store) Upsert(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.Filename]; !ok {
		s.order = append(s.order, r.Filename)
	}
	s.records[r.Filename] = r
}

// Remove deletes the record with the given filename. Removing an absent
// filename is a no-op: the local actor may already have seen the deletion,
// or the event may be a duplicate.
func (s *Store) Remove(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[filename]; !ok {
		return
	}
	delete(s.records, filename)
	for i, name := range s.order {
		if name == filename {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Replace swaps the entire collection for the given snapshot, de-duplicating
// by filename (last occurrence wins). Used when an init snapshot arrives at
// connection establishment.
func (s *Store) Replace(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.records = make(map[string]Record, len(records))
	for _, r := range records {
		if _, ok := s.records[r.Filename]; !ok {
			s.order = append(s.order, r.Filename)
		}
		s.records[r.Filename] = r
	}
}

// Get returns the record for filename, if present.
func (s *Store) Get(filename string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[filename]
	return r, ok
}

// Len returns the number of records in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// SortedView returns the records ordered by the given key. The slice is a
// fresh copy recomputed on every call, never cached across mutations, so the
// rendered order is a pure function of the key and the current contents.
// The sort is stable: ties keep arrival order.
func (s *Store) SortedView(key SortKey) []Record {
	s.mu.RLock()
	view := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		view = append(view, s.records[name])
	}
	s.mu.RUnlock()

	switch key {
	case SortByName:
		sort.SliceStable(view, func(i, j int) bool {
			return naturalLess(view[i].Filename, view[j].Filename)
		})
	case SortByUploader:
		sort.SliceStable(view, func(i, j int) bool {
			return naturalLess(view[i].Uploader, view[j].Uploader)
		})
	case SortBySize:
		sort.SliceStable(view, func(i, j int) bool {
			return view[i].Size > view[j].Size
		})
	case SortByType:
		sort.SliceStable(view, func(i, j int) bool {
			return naturalLess(view[i].Ext(), view[j].Ext())
		})
	case SortByDate:
		fallthrough
	default:
		sort.SliceStable(view, func(i, j int) bool {
			return view[i].UploadTime.After(view[j].UploadTime)
		})
	}
	return view
}

// naturalLess compares two strings case-insensitively, treating runs of
// digits as numbers, so "file2" sorts before "file10".
func naturalLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for la != "" && lb != "" {
		if unicode.IsDigit(rune(la[0])) && unicode.IsDigit(rune(lb[0])) {
			na, resta := leadingNumber(la)
			nb, restb := leadingNumber(lb)
			if na != nb {
				return na < nb
			}
			la, lb = resta, restb
			continue
		}
		if la[0] != lb[0] {
			return la[0] < lb[0]
		}
		la, lb = la[1:], lb[1:]
	}
	return len(la) < len(lb)
}

// leadingNumber splits a leading digit run off s and returns its value and
// the remainder.
func leadingNumber(s string) (uint64, string) {
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	var n uint64
	for _, c := range s[:i] {
		n = n*10 + uint64(c-'0')
	}
	return n, s[i:]
}
