package events

import (
	"context"
	"sync"
	"time"
)

// DefaultProcessedTTL covers the platform's webhook redelivery window.
const DefaultProcessedTTL = 24 * time.Hour

const memorySweepInterval = time.Minute

// ProcessedStore records webhook events that were already handled.
type ProcessedStore interface {
	// Claim marks the event as in-flight, returning false if it was already
	// claimed or processed.
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	// Release drops a claim so a redelivery of the event is processed again.
	Release(ctx context.Context, provider, eventID string) error
}

func processedKey(provider, eventID string) string {
	return provider + ":" + eventID
}

// MemoryProcessedStore is a process-local ProcessedStore.
type MemoryProcessedStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &MemoryProcessedStore{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryProcessedStore) Claim(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	key := processedKey(provider, eventID)
	if expiresAt, ok := s.seen[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return true, nil
}

func (s *MemoryProcessedStore) Release(_ context.Context, provider, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, processedKey(provider, eventID))
	return nil
}

func (s *MemoryProcessedStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < memorySweepInterval {
		return
	}
	s.lastSweep = now
	for key, expiresAt := range s.seen {
		if !now.Before(expiresAt) {
			delete(s.seen, key)
		}
	}
}
