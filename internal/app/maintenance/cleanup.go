package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aecdata/pipeline/pkg/logger"
)

const defaultCacheSpec = "@every 10m"

// CachePurger removes expired rows from a persistent cache.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner runs background maintenance for the SQL cache fallback. The Redis and
// in-process stores expire entries on their own and need no cleaner.
type Cleaner struct {
	cache    CachePurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCacheSchedule overrides the cron expression for cache purges.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger disables it.
func NewCleaner(cache CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		cache:    cache,
		now:      time.Now,
		schedule: defaultCacheSpec,
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the purge job and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.cache == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cache purge failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce purges expired cache rows and reports how many were removed.
func (c *Cleaner) RunOnce(ctx context.Context) (int64, error) {
	if c.cache == nil {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	removed, err := c.cache.PurgeExpired(ctx, c.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Debug("expired cache entries purged", zap.Int64("removed", removed))
	}
	return removed, nil
}
