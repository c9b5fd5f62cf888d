// Package cache implements the job-scoped key/value store with TTL expiry and
// size-bounded eviction shared by the discovery and page-fetch stages.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Clock abstracts time for TTL tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// entry is one cached value. An entry is valid iff now-InsertedAt < TTL;
// expired entries read as absent and are removed lazily, never swept.
type entry struct {
	Value      string    `json:"value"`
	InsertedAt time.Time `json:"inserted_at"`
	TTL        int64     `json:"ttl_ns"`
}

// Store is a TTL cache with insertion-order eviction. When the entry count
// exceeds the cap, the oldest 20% by insertion time are removed. This is
// deliberately not LRU-by-access: reads never refresh an entry's rank.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	ttl        time.Duration
	clock      Clock
}

// New constructs a Store. maxEntries <= 0 falls back to 1000 and ttl <= 0 to
// one hour.
func New(maxEntries int, ttl time.Duration) *Store {
	return NewWithClock(maxEntries, ttl, systemClock{})
}

// NewWithClock constructs a Store with an injected clock.
func NewWithClock(maxEntries int, ttl time.Duration, clock Clock) *Store {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
	}
}

// Get returns the value for key if a fresh entry exists. Expiry is checked
// lazily here; an expired entry is deleted and reported as absent.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if s.expired(e) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have replaced
		// the entry since the read.
		if current, still := s.entries[key]; still && s.expired(current) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.Value, true
}

// Set stores value under key, replacing any existing entry, then evicts if
// the store grew past its cap.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	s.entries[key] = entry{
		Value:      value,
		InsertedAt: s.clock.Now(),
		TTL:        int64(s.ttl),
	}
	s.evictLocked()
	s.mu.Unlock()
}

// Len reports the current entry count, expired entries included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// evictLocked removes the oldest 20% of entries by insertion time once the
// count exceeds the cap. Caller holds the write lock.
func (s *Store) evictLocked() {
	if len(s.entries) <= s.maxEntries {
		return
	}
	type keyed struct {
		key        string
		insertedAt time.Time
	}
	ranked := make([]keyed, 0, len(s.entries))
	for k, e := range s.entries {
		ranked = append(ranked, keyed{key: k, insertedAt: e.InsertedAt})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].insertedAt.Before(ranked[j].insertedAt)
	})
	evictCount := len(s.entries) / 5
	if evictCount < 1 {
		evictCount = 1
	}
	for _, k := range ranked[:evictCount] {
		delete(s.entries, k.key)
	}
}

func (s *Store) expired(e entry) bool {
	return s.clock.Now().Sub(e.InsertedAt) >= time.Duration(e.TTL)
}

// Persist serializes the full entry map to path. A failure here is reported
// to the caller but must not fail the crawl.
func (s *Store) Persist(path string) error {
	s.mu.RLock()
	snapshot := make(map[string]entry, len(s.entries))
	for k, e := range s.entries {
		snapshot[k] = e
	}
	s.mu.RUnlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write cache snapshot %s: %w", path, err)
	}
	return nil
}

// Restore loads a previously persisted snapshot, replacing current contents.
// Entries past their TTL still load; they read as absent and fall out lazily.
func (s *Store) Restore(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cache snapshot %s: %w", path, err)
	}
	snapshot := make(map[string]entry)
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("decode cache snapshot %s: %w", path, err)
	}
	s.mu.Lock()
	s.entries = snapshot
	s.mu.Unlock()
	return nil
}
