// Package cache is a bounded, recency-based store for auxiliary entities
// (assets, characters) that the sync layer reads but does not own. Every
// entry is stamped with its last-used time; eviction enforces a population
// cap and a staleness cutoff. There is no pinning: callers that need an
// entry to survive re-upsert it on every use.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default limits. A day of logical time covers a long gaming session with
// room to spare; 100 entries keeps the persisted payload small.
const (
	DefaultMaxEntries = 100
	DefaultMaxAge     = 24 * time.Hour
)

// Entry wraps a cached value with its recency stamp.
type Entry[T any] struct {
	Value    T         `json:"value"`
	LastUsed time.Time `json:"last_used"`
}

// Store is a bounded recency cache keyed by id.
type Store[T any] struct {
	clock      clockwork.Clock
	maxEntries int
	maxAge     time.Duration

	mu      sync.Mutex
	entries map[string]Entry[T]
}

// New creates a store. Non-positive limits fall back to the defaults.
func New[T any](clock clockwork.Clock, maxEntries int, maxAge time.Duration) *Store[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store[T]{
		clock:      clock,
		maxEntries: maxEntries,
		maxAge:     maxAge,
		entries:    make(map[string]Entry[T]),
	}
}

// Upsert inserts or replaces a value, stamping it as used now.
func (s *Store[T]) Upsert(id string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Entry[T]{Value: value, LastUsed: s.clock.Now()}
}

// BulkLoad inserts many values with one shared timestamp, so a batch load
// is indistinguishable, by recency, from entries loaded one by one.
func (s *Store[T]) BulkLoad(values map[string]T) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range values {
		s.entries[id] = Entry[T]{Value: v, LastUsed: now}
	}
}

// Get returns a value without refreshing its recency stamp.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e.Value, ok
}

// Touch refreshes an entry's recency stamp without changing its value.
func (s *Store[T]) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.LastUsed = s.clock.Now()
	s.entries[id] = e
	return true
}

// Len returns the current population.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EvictUnused removes entries last used before the staleness cutoff, then
// caps the surviving population at the maximum keeping the most recently
// used. It returns the number of evicted entries.
func (s *Store[T]) EvictUnused() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.maxAge)
	evicted := 0
	for id, e := range s.entries {
		if e.LastUsed.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}

	if len(s.entries) > s.maxEntries {
		type stamped struct {
			id       string
			lastUsed time.Time
		}
		byRecency := make([]stamped, 0, len(s.entries))
		for id, e := range s.entries {
			byRecency = append(byRecency, stamped{id: id, lastUsed: e.LastUsed})
		}
		sort.Slice(byRecency, func(i, j int) bool {
			if !byRecency[i].lastUsed.Equal(byRecency[j].lastUsed) {
				return byRecency[i].lastUsed.After(byRecency[j].lastUsed)
			}
			return byRecency[i].id < byRecency[j].id
		})
		for _, st := range byRecency[s.maxEntries:] {
			delete(s.entries, st.id)
			evicted++
		}
	}

	return evicted
}

// Clear empties the cache unconditionally.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry[T])
}

// Export returns a copy of all entries with their stamps, for persistence.
func (s *Store[T]) Export() map[string]Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry[T], len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

// Restore merges persisted entries, preserving their original stamps.
// Entries without a valid stamp are dropped.
func (s *Store[T]) Restore(entries map[string]Entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range entries {
		if id == "" || e.LastUsed.IsZero() {
			continue
		}
		s.entries[id] = e
	}
}
