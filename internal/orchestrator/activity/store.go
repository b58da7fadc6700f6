// Package activity keeps a bounded in-memory feed of recent translations.
package activity

import (
	"sync"
	"time"
)

// Event is one translation shown (or attempted) for a region.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	RegionID    int       `json:"region_id"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	Target      string    `json:"target"`
	Backend     string    `json:"backend"`
	Status      string    `json:"status"`
	Cached      bool      `json:"cached"`
}

// Store records events and fans them out to a single consumer.
type Store interface {
	Add(e Event) Event
	Recent(n int) []Event
	ForRegion(regionID int) []Event
	Forget(regionID int)
	Events() <-chan Event
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a ring of the last maxSize events plus a buffered channel.
// A slow consumer loses events rather than stalling the monitor.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Event
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a store keeping maxEntries events.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	return &MemoryStore{
		entries:  make([]Event, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add timestamps e if needed, stores it and emits it (non-blocking).
func (s *MemoryStore) Add(e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.mu.Unlock()

	select {
	case s.eventsCh <- e:
	default:
	}
	return e
}

// Recent returns up to n newest events, oldest first. n <= 0 returns all.
func (s *MemoryStore) Recent(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	out := make([]Event, len(s.entries)-start)
	copy(out, s.entries[start:])
	return out
}

// ForRegion returns the stored events of one region, oldest first.
func (s *MemoryStore) ForRegion(regionID int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.entries {
		if e.RegionID == regionID {
			out = append(out, e)
		}
	}
	return out
}

// Forget drops a removed region's history.
func (s *MemoryStore) Forget(regionID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.RegionID != regionID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

// Events returns the channel of new events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}
