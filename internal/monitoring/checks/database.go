package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/monitoring"
)

// Database pings the metadata database through its connection pool.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.Check{
		Name:    "database",
		Timeout: timeout,
		Probe: func(ctx context.Context) error {
			if db == nil {
				return errors.New("database not configured")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}
