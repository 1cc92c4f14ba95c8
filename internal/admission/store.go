package admission

import (
	"context"
	"sync"
	"time"
)

// Store holds buckets. Take must apply an attempt as one atomic step with
// respect to other attempts on the same key.
type Store interface {
	Take(ctx context.Context, key string, p Policy, now time.Time) (Decision, error)
}

type memoryEntry struct {
	bucket Bucket
	idleAt time.Time
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Take(_ context.Context, key string, p Policy, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.buckets[key]
	if !ok {
		e = &memoryEntry{}
		s.buckets[key] = e
	}
	d := take(&e.bucket, p, now)
	e.idleAt = idleAt(&e.bucket, p)
	return d, nil
}

// Sweep drops buckets that have been idle past their window and block.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.buckets {
		if !now.Before(e.idleAt) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
