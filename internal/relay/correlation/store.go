// Package correlation maps a message the bot delivered to the operator back
// to the chat of the user it came from, so operator replies can be routed
// without parsing the banner text.
package correlation

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long an operator can wait before replying and still
// be routed by the store rather than the banner fallback.
const DefaultTTL = 30 * 24 * time.Hour

// memorySweepInterval spaces out full scans for expired entries.
const memorySweepInterval = time.Minute

// Store records operator-chat message IDs against sender chat IDs.
type Store interface {
	Remember(ctx context.Context, operatorMessageID int, senderChatID int64) error
	// Lookup returns ok=false when the message is unknown or expired.
	Lookup(ctx context.Context, operatorMessageID int) (senderChatID int64, ok bool, err error)
}

type memoryEntry struct {
	chatID    int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store, suitable for a single long-lived
// server or tests.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[int]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[int]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Remember(_ context.Context, operatorMessageID int, senderChatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	s.entries[operatorMessageID] = memoryEntry{chatID: senderChatID, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, operatorMessageID int) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[operatorMessageID]
	if !ok {
		return 0, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, operatorMessageID)
		return 0, false, nil
	}
	return entry.chatID, true, nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < memorySweepInterval {
		return
	}
	s.lastSweep = now
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
