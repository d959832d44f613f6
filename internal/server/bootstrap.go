package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/api"
	"github.com/aecdata/pipeline/internal/app"
	"github.com/aecdata/pipeline/internal/app/maintenance"
	"github.com/aecdata/pipeline/internal/database"
	"github.com/aecdata/pipeline/internal/monitoring"
	"github.com/aecdata/pipeline/internal/storage"
)

// Needs lists the backing services a binary requires.
type Needs struct {
	Service string
	Blobs   bool
	Cache   bool
}

// Stack bundles the long-lived clients behind one service process.
type Stack struct {
	DB      *gorm.DB
	Cache   *app.CacheRuntime
	Blobs   storage.BlobStore
	Monitor *monitoring.Module
	Cleaner *maintenance.Cleaner
}

// LoadConfig reads configuration from a directory or a file inside one.
// An empty path searches the default locations.
func LoadConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return app.LoadConfig(path)
	}
	return app.LoadConfig(filepath.Dir(path))
}

// Bootstrap opens every dependency named in needs. On failure anything already
// opened is released before returning.
func Bootstrap(ctx context.Context, cfg *app.Config, needs Needs, log *zap.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	stack := &Stack{}
	success := false
	defer func() {
		if !success {
			if err := stack.Shutdown(context.Background()); err != nil {
				log.Warn("partial bootstrap cleanup", zap.Error(err))
			}
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var err error
	if stack.Monitor, err = app.NewMonitoring(cfg.Monitoring, needs.Service); err != nil {
		return nil, err
	}

	if stack.DB, err = app.OpenDatabase(cfg.Database); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Info("database connected", zap.String("driver", cfg.Database.DatabaseOptions().Driver))

	if needs.Blobs {
		if stack.Blobs, err = app.OpenBlobStore(ctx, cfg.Storage); err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		log.Info("blob store ready", zap.String("bucket", stack.Blobs.Bucket()))
	}

	if needs.Cache {
		if stack.Cache, err = app.OpenCacheStore(cfg.Cache, stack.DB); err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		var purger maintenance.CachePurger
		if stack.Cache.Purger != nil {
			purger = stack.Cache.Purger
		}
		stack.Cleaner = maintenance.NewCleaner(purger, maintenance.WithCacheSchedule(cfg.Cache.PurgeSchedule))
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	success = true
	return stack, nil
}

// Dependencies exposes the stack in the shape the routers accept.
func (s *Stack) Dependencies() api.Dependencies {
	deps := api.Dependencies{DB: s.DB, Blobs: s.Blobs, Monitor: s.Monitor}
	if s.Cache != nil {
		deps.Cache = s.Cache.Store
	}
	return deps
}

// Shutdown stops background jobs and closes every client, collecting all failures.
func (s *Stack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
		}
		if _, err := s.Cleaner.RunOnce(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("final cache purge: %w", err))
		}
		s.Cleaner = nil
	}
	if s.Cache != nil {
		errs = multierr.Append(errs, s.Cache.Close())
		s.Cache = nil
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
		s.DB = nil
	}
	if s.Monitor != nil && monitoring.CurrentModule() == s.Monitor {
		monitoring.SetModule(nil)
	}
	return errs
}
