package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is an in-process Store used for local development and tests.
// Entries expire on their own TTL; reads never extend it.
type MemoryStore struct {
	mu       sync.Mutex
	items    *ttlcache.Cache[string, []byte]
	counters *ttlcache.Cache[string, int64]
}

// NewMemoryStore constructs a MemoryStore and starts its expiry janitors.
func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	counters := ttlcache.New[string, int64](
		ttlcache.WithDisableTouchOnHit[string, int64](),
	)
	go items.Start()
	go counters.Start()

	return &MemoryStore{items: items, counters: counters}
}

// Close stops the expiry janitors.
func (s *MemoryStore) Close() error {
	s.items.Stop()
	s.counters.Stop()
	return nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// IncrementWithTTL increments a fixed-window counter. The window starts on the first hit.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.counters.Get(key)
	if item == nil {
		s.counters.Set(key, 1, window)
		return 1, window, nil
	}

	remaining := time.Until(item.ExpiresAt())
	if remaining <= 0 {
		s.counters.Set(key, 1, window)
		return 1, window, nil
	}

	count := item.Value() + 1
	updated := s.counters.Set(key, count, ttlcache.PreviousOrDefaultTTL)
	return count, time.Until(updated.ExpiresAt()), nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry until deleted.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.items.Set(key, buf, ttl)
	return nil
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	value := item.Value()
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, true, nil
}

// Delete removes keys from the store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.items.Delete(key)
		s.counters.Delete(key)
	}
	return nil
}
