package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cyp0633/eventcal/internal/log"
)

// Entry is one cached value.
type Entry struct {
	Value      []byte
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// Config holds configuration for the memory cache
type Config struct {
	TTL        time.Duration // How long entries stay valid; zero keeps them until evicted
	MaxEntries int           // Entries kept before least recently used ones are evicted
	// CleanupSchedule is a cron spec for the expired-entry sweep. Empty
	// disables the janitor.
	CleanupSchedule string
}

// DefaultConfig keeps lists for 15 minutes, at most 1000 of them.
var DefaultConfig = Config{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupSchedule: "@every 5m",
}

// MemoryStore is a bounded in-process Store with TTL expiry and LRU eviction.
type MemoryStore struct {
	entries    map[string]*Entry
	mutex      sync.RWMutex
	ttl        time.Duration
	maxEntries int
	janitor    *cron.Cron
	logger     logrus.FieldLogger
	now        func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithLogger sets the logger sweeps and evictions report to.
func WithLogger(l logrus.FieldLogger) MemoryOption {
	return func(s *MemoryStore) {
		s.logger = l
	}
}

// NewMemoryStore creates a memory cache and starts its janitor.
func NewMemoryStore(config Config, opts ...MemoryOption) (*MemoryStore, error) {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig.MaxEntries
	}
	s := &MemoryStore{
		entries:    make(map[string]*Entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		logger:     log.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.CleanupSchedule != "" {
		s.janitor = cron.New()
		if _, err := s.janitor.AddFunc(config.CleanupSchedule, s.sweep); err != nil {
			return nil, fmt.Errorf("schedule cache cleanup %q: %w", config.CleanupSchedule, err)
		}
		s.janitor.Start()
	}
	return s, nil
}

func (s *MemoryStore) expired(e *Entry, now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get retrieves a value if it exists and hasn't expired
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(entry, now) {
		delete(s.entries, key)
		return nil, false, nil
	}
	entry.AccessedAt = now
	return entry.Value, true, nil
}

// Set stores a value, evicting the least recently used entries when full.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	now := s.now()
	entry := &Entry{
		Value:      value,
		AccessedAt: now,
	}
	if s.ttl > 0 {
		entry.ExpiresAt = now.Add(s.ttl)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[key] = entry
	if len(s.entries) > s.maxEntries {
		s.cleanup(now)
	}
	return nil
}

// Flush drops every entry.
func (s *MemoryStore) Flush(_ context.Context) error {
	s.mutex.Lock()
	s.entries = make(map[string]*Entry)
	s.mutex.Unlock()
	return nil
}

// cleanup removes expired entries, then the least recently accessed ones
// while over the limit. Callers hold the write lock.
func (s *MemoryStore) cleanup(now time.Time) {
	for key, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, key)
		}
	}

	over := len(s.entries) - s.maxEntries
	if over <= 0 {
		return
	}

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].AccessedAt.Before(s.entries[keys[j]].AccessedAt)
	})
	for _, key := range keys[:over] {
		delete(s.entries, key)
	}
	s.logger.WithField("evicted", over).Debug("cache over capacity")
}

func (s *MemoryStore) sweep() {
	s.mutex.Lock()
	before := len(s.entries)
	s.cleanup(s.now())
	removed := before - len(s.entries)
	s.mutex.Unlock()

	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("cache sweep")
	}
}

// Close stops the janitor and clears the cache
func (s *MemoryStore) Close() {
	if s.janitor != nil {
		<-s.janitor.Stop().Done()
	}
	s.mutex.Lock()
	s.entries = make(map[string]*Entry)
	s.mutex.Unlock()
}

// Stats returns cache statistics
func (s *MemoryStore) Stats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.now()
	expired := 0
	for _, entry := range s.entries {
		if s.expired(entry, now) {
			expired++
		}
	}
	return Stats{
		TotalEntries:   len(s.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(s.entries) - expired,
	}
}

// Stats provides information about cache occupancy
type Stats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
