package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
)

// IdempotencyStore caches decisions by idempotency key for a TTL so duplicate
// submissions replay the identical decision instead of re-running the gates.
// Expired entries are dropped lazily on read and in bulk by the sweeper.
type IdempotencyStore struct {
	ttl   time.Duration
	clock drepo.Clock

	mu      sync.RWMutex
	entries map[string]idemEntry
}

type idemEntry struct {
	decision  *models.Decision
	expiresAt time.Time
}

// NewIdempotencyStore creates the store. The clock is injectable so expiry
// is testable without sleeping.
func NewIdempotencyStore(ttl time.Duration, clock drepo.Clock) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	return &IdempotencyStore{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]idemEntry),
	}
}

// Get returns the cached decision for a key, or nil when absent or expired.
func (s *IdempotencyStore) Get(key string) *models.Decision {
	if key == "" {
		return nil
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.clock.Now().After(e.expiresAt) {
		s.mu.Lock()
		// Recheck under the write lock: a concurrent Put may have renewed it.
		if cur, still := s.entries[key]; still && s.clock.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil
	}
	return e.decision
}

// Seen reports whether a live decision exists for the key. Unlike Get it
// never mutates the store, so an expired entry is left for the sweeper.
func (s *IdempotencyStore) Seen(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return ok && !s.clock.Now().After(e.expiresAt)
}

// Put stores a decision under its key for the configured TTL.
func (s *IdempotencyStore) Put(key string, d *models.Decision) {
	if key == "" || d == nil {
		return
	}
	s.mu.Lock()
	s.entries[key] = idemEntry{decision: d, expiresAt: s.clock.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// Sweep removes all expired entries and returns how many were dropped.
func (s *IdempotencyStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of live and not-yet-swept entries.
func (s *IdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Run sweeps at the given interval until the context is cancelled.
func (s *IdempotencyStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
