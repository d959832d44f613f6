package cache

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Outcome classifies a memoized lookup.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeError Outcome = "error"
)

// ObserverFunc receives one call per lookup outcome. A failed cache read reports
// OutcomeError and then OutcomeMiss, since the loader still runs.
type ObserverFunc func(operation string, outcome Outcome)

// LoaderFunc produces the serialized value on a cache miss.
type LoaderFunc func(ctx context.Context) ([]byte, error)

// Memoizer wraps read operations with a TTL cache lookup. Cache failures are
// logged and never fail the read.
type Memoizer struct {
	store    Store
	logger   *zap.Logger
	observer ObserverFunc
}

// MemoizerOption customises a Memoizer.
type MemoizerOption func(*Memoizer)

// WithObserver installs a lookup observer, typically a metrics recorder.
func WithObserver(fn ObserverFunc) MemoizerOption {
	return func(m *Memoizer) {
		m.observer = fn
	}
}

// WithLogger overrides the logger used for cache warnings.
func WithLogger(logger *zap.Logger) MemoizerOption {
	return func(m *Memoizer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemoizer constructs a Memoizer. A nil store disables caching.
func NewMemoizer(store Store, opts ...MemoizerOption) *Memoizer {
	m := &Memoizer{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Do returns the cached value for key or calls fn and caches its result for ttl.
// The boolean reports whether the value came from the cache. Errors from fn are
// returned unchanged and never cached.
func (m *Memoizer) Do(ctx context.Context, operation, key string, ttl time.Duration, fn LoaderFunc) ([]byte, bool, error) {
	if m == nil || m.store == nil {
		value, err := fn(ctx)
		return value, false, err
	}

	cached, ok, err := m.store.Get(ctx, key)
	switch {
	case err != nil:
		m.logger.Warn("cache read failed",
			zap.String("operation", operation),
			zap.String("key", key),
			zap.Error(err),
		)
		m.observe(operation, OutcomeError)
		m.observe(operation, OutcomeMiss)
	case ok:
		m.observe(operation, OutcomeHit)
		return cached, true, nil
	default:
		m.observe(operation, OutcomeMiss)
	}

	value, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := m.store.Set(ctx, key, value, ttl); err != nil {
		m.logger.Warn("cache write failed",
			zap.String("operation", operation),
			zap.String("key", key),
			zap.Error(err),
		)
		m.observe(operation, OutcomeError)
	}
	return value, false, nil
}

func (m *Memoizer) observe(operation string, outcome Outcome) {
	if m.observer != nil {
		m.observer(operation, outcome)
	}
}

// Fingerprint derives the cache key for an operation from the request path and
// query. Query parameters are sorted so equivalent requests share an entry.
func Fingerprint(operation, path string, query url.Values) string {
	var b strings.Builder
	b.WriteString("cache:")
	b.WriteString(operation)
	b.WriteByte(':')
	b.WriteString(path)

	if len(query) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('?')
	first := true
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
