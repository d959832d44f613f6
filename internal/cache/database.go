package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aecdata/pipeline/internal/models"
)

var errDatabaseStoreNil = errors.New("cache: database store not initialised")

// DatabaseStore keeps memoized responses in cache_entries and rate-limit
// counters in rate_limit_counters. Expired rows are invisible to reads and are
// removed by PurgeExpired.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

func (s *DatabaseStore) session(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errDatabaseStoreNil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

func (s *DatabaseStore) clock() time.Time {
	return s.now().UTC()
}

// IncrementWithTTL bumps the counter for key in a single upsert. A counter whose
// window has ended restarts at 1 with a fresh window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()
	ends := now.Add(window)

	var counter models.RateCounter
	err = db.Transaction(func(tx *gorm.DB) error {
		// MySQL applies assignments left to right, so hits must read the old window_ends.
		upsert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "hits"}, Value: gorm.Expr(
					"CASE WHEN rate_limit_counters.window_ends <= ? THEN 1 ELSE rate_limit_counters.hits + 1 END", now)},
				{Column: clause.Column{Name: "window_ends"}, Value: gorm.Expr(
					"CASE WHEN rate_limit_counters.window_ends <= ? THEN ? ELSE rate_limit_counters.window_ends END", now, ends)},
			},
		}).Create(&models.RateCounter{Key: key, Hits: 1, WindowEnds: ends})
		if upsert.Error != nil {
			return upsert.Error
		}
		return tx.Where(map[string]any{"key": key}).Take(&counter).Error
	})
	if err != nil {
		return 0, 0, err
	}

	remaining := counter.WindowEnds.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return counter.Hits, remaining, nil
}

// Set upserts value under key. A non-positive ttl stores it without expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	db, err := s.session(ctx)
	if err != nil {
		return err
	}

	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.clock().Add(ttl)
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Get returns the live value for key. Expired rows read as a miss.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.session(ctx)
	if err != nil {
		return nil, false, err
	}

	var entry models.CacheEntry
	err = db.Where(map[string]any{"key": key}).
		Where("expires_at = ? OR expires_at > ?", time.Time{}, s.clock()).
		Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return entry.Value, true, nil
}

// Ping verifies the database connection is alive.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errDatabaseStoreNil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Delete removes cached values and counters stored under keys.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	db, err := s.session(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := db.Where(map[string]any{"key": keys}).Delete(&models.CacheEntry{}).Error; err != nil {
		return err
	}
	return db.Where(map[string]any{"key": keys}).Delete(&models.RateCounter{}).Error
}

// PurgeExpired deletes cache rows that expired before now and counters whose
// window has closed. Entries stored without expiry are kept.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, err
	}
	now = now.UTC()

	entries := db.Where("expires_at > ? AND expires_at < ?", time.Time{}, now).Delete(&models.CacheEntry{})
	if entries.Error != nil {
		return 0, entries.Error
	}
	counters := db.Where("window_ends < ?", now).Delete(&models.RateCounter{})
	if counters.Error != nil {
		return entries.RowsAffected, counters.Error
	}
	return entries.RowsAffected + counters.RowsAffected, nil
}
