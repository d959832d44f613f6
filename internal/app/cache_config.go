package app

import (
	"strings"
	"time"

	"github.com/aecdata/pipeline/internal/cache"
)

// Cache backends accepted by cache.backend.
const (
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
	CacheBackendDatabase = "database"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:      strings.TrimSpace(c.Redis.URL),
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// ResolvedBackend returns the configured backend, inferring redis when a
// connection is configured and memory otherwise.
func (c CacheConfig) ResolvedBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Backend))
	if backend != "" {
		return backend
	}
	if strings.TrimSpace(c.Redis.URL) != "" || strings.TrimSpace(c.Redis.Address) != "" {
		return CacheBackendRedis
	}
	return CacheBackendMemory
}

// ItemTTL is the cache lifetime for single-record and statistics reads.
func (c CacheConfig) ItemTTL() time.Duration {
	return secondsOr(c.TTLSeconds, 300)
}

// ListTTL is the cache lifetime for listings.
func (c CacheConfig) ListTTL() time.Duration {
	return secondsOr(c.ListTTLSeconds, 60)
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
