package store

import (
	"sync"

	"github.com/blessed-py/traffic-management/internal/event"
)

// MemoryStore is an append-only in-memory log of traffic events. It assigns
// process-unique, strictly increasing IDs at insertion. Growth is unbounded;
// retention is bounded in practice by the limits callers pass to Recent.
type MemoryStore struct {
	mu     sync.Mutex
	events []event.TrafficEvent
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Add assigns the next ID, appends, and returns a copy of the stored event.
// The store owns the appended value; callers get copies only.
func (s *MemoryStore) Add(ev event.TrafficEvent) event.TrafficEvent {
	stored := ev.Clone()

	s.mu.Lock()
	stored.ID = s.nextID
	s.nextID++
	s.events = append(s.events, stored)
	s.mu.Unlock()

	return stored.Clone()
}

// Recent returns up to limit events, newest (highest ID) first. A limit of
// zero or less yields an empty slice. The result is a snapshot copy; it never
// aliases the live log, so callers can aggregate over it without holding any
// lock.
func (s *MemoryStore) Recent(limit int) []event.TrafficEvent {
	if limit < 0 {
		limit = 0
	}

	s.mu.Lock()
	n := limit
	if n > len(s.events) {
		n = len(s.events)
	}
	out := make([]event.TrafficEvent, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i].Clone())
	}
	s.mu.Unlock()

	return out
}

// Len reports the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Clear resets the log and the ID counter. Test isolation only.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.events = nil
	s.nextID = 1
	s.mu.Unlock()
}
