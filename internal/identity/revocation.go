package identity

import (
	"sync"
	"time"
)

// Revocations is the set of credential ids burned before their natural
// expiry. Entries are dropped once the credential would have expired
// anyway, so the set stays small.
type Revocations struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time)}
}

func (r *Revocations) Revoke(id string, expiresAt time.Time) {
	r.mu.Lock()
	r.entries[id] = expiresAt
	r.mu.Unlock()
}

func (r *Revocations) IsRevoked(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Cleanup removes entries whose credential expiry is at or before now.
func (r *Revocations) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

func (r *Revocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
