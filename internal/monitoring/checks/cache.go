package checks

import (
	"context"
	"errors"
	"time"

	"github.com/aecdata/pipeline/internal/monitoring"
)

// Pinger is implemented by the cache stores and blob stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache probes the response cache and rate-limit store.
func Cache(store Pinger, timeout time.Duration) monitoring.Check {
	return ping("cache", store, timeout)
}

func ping(name string, target Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.Check{
		Name:    name,
		Timeout: timeout,
		Probe: func(ctx context.Context) error {
			if target == nil {
				return errors.New(name + " not configured")
			}
			return target.Ping(ctx)
		},
	}
}
