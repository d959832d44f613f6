package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/cache"
	"github.com/aecdata/pipeline/internal/database"
	"github.com/aecdata/pipeline/internal/monitoring"
	"github.com/aecdata/pipeline/internal/storage"
	"github.com/aecdata/pipeline/pkg/logger"
)

// OpenDatabase connects to the metadata database and migrates it when enabled.
func OpenDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseOptions())
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return db, nil
}

// CacheRuntime is the opened cache backend plus its teardown hook.
type CacheRuntime struct {
	Store   cache.Store
	Backend string
	// Purger is set for the database backend, whose rows need periodic cleanup.
	Purger *cache.DatabaseStore
	close  func() error
}

// Close releases the backend's resources.
func (r *CacheRuntime) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}

// OpenCacheStore constructs the cache and rate-limit store selected by cfg.
func OpenCacheStore(cfg CacheConfig, db *gorm.DB) (*CacheRuntime, error) {
	backend := cfg.ResolvedBackend()
	log := logger.WithModule("cache")

	switch backend {
	case CacheBackendRedis:
		client, err := cache.NewRedisClient(cfg.RedisClientConfig())
		if err != nil {
			return nil, err
		}
		log.Info("cache backend ready", zap.String("backend", backend))
		return &CacheRuntime{Store: client, Backend: backend, close: client.Close}, nil
	case CacheBackendMemory:
		store := cache.NewMemoryStore()
		log.Info("cache backend ready", zap.String("backend", backend))
		return &CacheRuntime{Store: store, Backend: backend, close: store.Close}, nil
	case CacheBackendDatabase:
		store := cache.NewDatabaseStore(db)
		if store == nil {
			return nil, fmt.Errorf("cache: database backend requires a database connection")
		}
		log.Info("cache backend ready", zap.String("backend", backend))
		return &CacheRuntime{Store: store, Backend: backend, Purger: store}, nil
	default:
		return nil, fmt.Errorf("cache: unsupported backend %q", backend)
	}
}

// OpenBlobStore constructs the blob store selected by cfg. With create_bucket set
// the S3 bucket is created when missing; otherwise reachability is left to /ready.
func OpenBlobStore(ctx context.Context, cfg StorageConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case StorageBackendMemory:
		return storage.NewMemoryStore(cfg.Bucket), nil
	case StorageBackendS3, "":
		store, err := storage.NewS3Store(cfg.S3Options())
		if err != nil {
			return nil, err
		}
		if cfg.CreateBucket {
			if err := store.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Backend)
	}
}

// NewMonitoring builds the metrics module for service and installs it globally.
func NewMonitoring(cfg MonitoringConfig, service string) (*monitoring.Module, error) {
	module, err := monitoring.NewModule(monitoring.Options{
		Namespace: cfg.Namespace,
		Service:   service,
	})
	if err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}
	monitoring.SetModule(module)
	return module, nil
}
