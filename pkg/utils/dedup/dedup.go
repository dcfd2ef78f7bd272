package dedup

import (
	"sync"
	"time"
)

// RecentSet is a bounded set of recently observed IDs used to suppress
// duplicate deliveries of the same event arriving over racing channels.
// Entries expire after a fixed window; when the set is full the oldest entry
// is evicted. Two distinct IDs observed inside the window are both admitted,
// which is the property a blanket cooldown cannot give.
type RecentSet struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	seen     map[string]time.Time
	order    []string
	now      func() time.Time
}

// New creates a RecentSet remembering IDs for the given window, holding at
// most capacity entries.
func New(window time.Duration, capacity int) *RecentSet {
	if capacity < 1 {
		capacity = 1
	}
	return &RecentSet{
		window:   window,
		capacity: capacity,
		seen:     make(map[string]time.Time, capacity),
		now:      time.Now,
	}
}

// Observe records the ID and reports whether this is its first sighting
// within the window. A repeated sighting refreshes nothing: the original
// expiry stands, so a stream of duplicates eventually re-admits the ID after
// the window elapses.
func (s *RecentSet) Observe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)

	if _, ok := s.seen[id]; ok {
		return false
	}

	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}

	s.seen[id] = now
	s.order = append(s.order, id)
	return true
}

// Len returns the number of live entries.
func (s *RecentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.now())
	return len(s.seen)
}

// prune drops expired entries. Caller must hold mu.
func (s *RecentSet) prune(now time.Time) {
	for len(s.order) > 0 {
		id := s.order[0]
		at, ok := s.seen[id]
		if ok && now.Sub(at) < s.window {
			break
		}
		s.order = s.order[1:]
		delete(s.seen, id)
	}
}
