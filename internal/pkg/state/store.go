package state

import (
	"sync"
	"sync/atomic"

	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

// Store holds the single published snapshot.
// Values are replaced whole, so a reader never sees fields from two publishes.
type Store struct {
	current atomic.Pointer[models.Snapshot]

	hooksMu sync.RWMutex
	hooks   []func(models.Snapshot)
}

// NewStore creates a store seeded with initial.
func NewStore(initial models.Snapshot) *Store {
	s := &Store{}
	s.current.Store(&initial)
	return s
}

// Read returns the current snapshot. It never blocks.
func (s *Store) Read() models.Snapshot {
	return *s.current.Load()
}

// Publish replaces the current snapshot.
func (s *Store) Publish(snap models.Snapshot) {
	s.current.Store(&snap)
	s.notify(snap)
}

// Update applies fn to the current snapshot and publishes the result.
// fn may run more than once if another publish lands in between.
func (s *Store) Update(fn func(models.Snapshot) models.Snapshot) models.Snapshot {
	for {
		old := s.current.Load()
		next := fn(*old)
		if s.current.CompareAndSwap(old, &next) {
			s.notify(next)
			return next
		}
	}
}

// Subscribe registers fn to be called after every publish, on the
// publishing goroutine. fn must not block.
func (s *Store) Subscribe(fn func(models.Snapshot)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(snap models.Snapshot) {
	s.hooksMu.RLock()
	hooks := s.hooks
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(snap)
	}
}
