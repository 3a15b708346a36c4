// Package pending keeps in-flight join verifications in memory.
package pending

import (
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/gatekeeper/gate/challenge"
	"github.com/m3rciful/gatekeeper/gate/config"
)

// State describes what a requester still has to prove. It is never mutated
// after Put; a new join request replaces it.
type State struct {
	ChatID   int64
	UserID   int64
	Mode     config.Mode
	Expected int
	Options  []challenge.Option
	Left     int
	Right    int
	IssuedAt time.Time
}

// Store maps requester IDs to their pending State and hands out per-user locks.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]State

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[int64]State),
		locks:   make(map[int64]*userLock),
	}
}

// Put stores st for userID, replacing any previous entry.
func (s *Store) Put(userID int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = st
}

// Get returns the pending state for userID if any.
func (s *Store) Get(userID int64) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[userID]
	return st, ok
}

// Remove deletes the entry for userID. Removing a missing entry is a no-op.
func (s *Store) Remove(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Len reports the number of pending entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IssuedBefore returns user IDs whose state was issued before cutoff, oldest first.
func (s *Store) IssuedBefore(cutoff time.Time) []int64 {
	s.mu.RLock()
	type aged struct {
		id int64
		at time.Time
	}
	var stale []aged
	for id, st := range s.entries {
		if st.IssuedAt.Before(cutoff) {
			stale = append(stale, aged{id: id, at: st.IssuedAt})
		}
	}
	s.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].at.Before(stale[j].at) })
	ids := make([]int64, len(stale))
	for i, a := range stale {
		ids[i] = a.id
	}
	return ids
}

// Lock acquires the critical section for userID and returns its release func.
// Different users never contend on the same lock.
func (s *Store) Lock(userID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}
