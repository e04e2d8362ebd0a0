// Package memory implements domain.Cache as an in-process LRU with per-entry expiry.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Store is a thread-safe LRU cache whose entries also expire after their TTL.
// It implements domain.Cache.
type Store struct {
	maxEntries int
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry
	// ring is a sentinel: ring.next is the most recently used entry and
	// ring.prev the least.
	ring entry
}

type entry struct {
	key       string
	value     string
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// NewStore creates a store holding at most maxEntries keys.
func NewStore(maxEntries int, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
	s.ring.next, s.ring.prev = &s.ring, &s.ring
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if e.expired(s.clock.Now()) {
		s.evict(e)
		return "", false, nil
	}
	s.touch(e)
	return e.value, true, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key}
		s.entries[key] = e
	}
	e.value = value
	e.expiresAt = s.clock.Now().Add(ttl)
	s.touch(e)

	for len(s.entries) > s.maxEntries {
		s.evict(s.ring.prev)
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for e := s.ring.prev; e != &s.ring; {
		older := e
		e = e.prev
		if older.expired(now) {
			s.evict(older)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on a gocron schedule until the returned scheduler is stopped.
func (s *Store) StartSweeper(interval time.Duration, logger *zap.Logger) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		if n := s.Sweep(); n > 0 {
			logger.Debug("cache sweep", zap.Int("removed", n), zap.Int("remaining", s.Len()))
		}
	})
	if err != nil {
		return nil, err
	}
	scheduler.StartAsync()
	return scheduler, nil
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// touch makes e the most recently used entry, linking it in if it is new.
func (s *Store) touch(e *entry) {
	if e.prev != nil {
		e.prev.next, e.next.prev = e.next, e.prev
	}
	e.prev, e.next = &s.ring, s.ring.next
	s.ring.next.prev = e
	s.ring.next = e
}

func (s *Store) evict(e *entry) {
	e.prev.next, e.next.prev = e.next, e.prev
	e.prev, e.next = nil, nil
	delete(s.entries, e.key)
}
