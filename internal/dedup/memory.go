package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements domain.DedupStore with an in-process map.
// Claims do not survive a restart; use the SQLite store when duplicate
// suppression must hold across restarts.
type MemoryStore struct {
	mu        sync.Mutex
	seen      map[int64]time.Time // id -> expiry deadline
	retention time.Duration
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		seen:      make(map[int64]time.Time),
		retention: retention,
	}
}

func (s *MemoryStore) Claim(_ context.Context, updateID int64) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.seen[updateID]; ok && deadline.After(now) {
		return false, nil
	}
	s.seen[updateID] = now.Add(s.retention)

	// Lazy sweep keeps the map bounded without a background goroutine.
	if len(s.seen)%1024 == 0 {
		for id, deadline := range s.seen {
			if !deadline.After(now) {
				delete(s.seen, id)
			}
		}
	}
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
