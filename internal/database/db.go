package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override; a URL scheme selects the driver when Driver is empty
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string
	Pool     PoolConfig
}

// PoolConfig sizes the database/sql connection pool. Idle connections are
// capped at Size and open connections at Size+MaxOverflow.
type PoolConfig struct {
	Size        int
	MaxOverflow int
	MaxLifetime time.Duration
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := resolveDriver(cfg)

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	case "mysql":
		db, err = openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver != "sqlite" {
		if err := configurePool(db, cfg.Pool); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func resolveDriver(cfg Config) string {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "postgresql", "pg":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	case "":
	default:
		return driver
	}

	dsn := strings.ToLower(strings.TrimSpace(cfg.DSN))
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql"
	default:
		return "sqlite"
	}
}

func configurePool(db *gorm.DB, pool PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	size := pool.Size
	if size <= 0 {
		size = 10
	}
	overflow := pool.MaxOverflow
	if overflow < 0 {
		overflow = 0
	}

	sqlDB.SetMaxIdleConns(size)
	sqlDB.SetMaxOpenConns(size + overflow)
	if pool.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	}
	return nil
}

func gormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func portOrDefault(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
