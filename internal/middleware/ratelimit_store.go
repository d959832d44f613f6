package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aecdata/pipeline/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// storeRateStore keeps fixed-window counters in a cache.Store (Redis, in-process or SQL).
type storeRateStore struct {
	store cache.Store
}

// NewRateStore wraps a cache store in a RateStore implementation.
func NewRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if s == nil || s.store == nil {
		return 0, 0, errors.New("rate store not initialised")
	}
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
