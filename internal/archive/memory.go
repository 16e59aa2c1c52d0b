package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMemoryCapacity bounds the in-memory history per process.
const DefaultMemoryCapacity = 1000

// MemoryStore is a [Store] that keeps the most recent utterances in memory.
// It is the fallback when no database is configured; oldest entries are
// evicted once the capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	items    []Utterance
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a bounded in-memory store. capacity <= 0 selects
// DefaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Save appends u, evicting the oldest entry at capacity.
func (s *MemoryStore) Save(_ context.Context, u *Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == s.capacity {
		copy(s.items, s.items[1:])
		s.items = s.items[:len(s.items)-1]
	}
	s.items = append(s.items, *u)
	return nil
}

// Recent returns up to limit utterances for the session, newest first.
func (s *MemoryStore) Recent(_ context.Context, sessionID string, limit int) ([]Utterance, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Utterance
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		if s.items[i].SessionID == sessionID {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}
