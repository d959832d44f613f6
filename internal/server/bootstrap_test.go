package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aecdata/pipeline/internal/api"
	"github.com/aecdata/pipeline/internal/app"
	"github.com/aecdata/pipeline/internal/database"
	"github.com/aecdata/pipeline/internal/monitoring"
)

func localConfig(t *testing.T) *app.Config {
	t.Helper()
	return &app.Config{
		Database: app.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(t.TempDir(), "aec.sqlite"),
			AutoMigrate: true,
		},
		Cache:   app.CacheConfig{Backend: app.CacheBackendDatabase, PurgeSchedule: "@every 1h"},
		Storage: app.StorageConfig{Backend: app.StorageBackendMemory, Bucket: "aec-data-local"},
		Upload:  app.UploadConfig{MaxSize: 1 << 20, AllowedExtensions: []string{".pdf"}},
		RateLimit: app.RateLimitConfig{
			Enabled: true,
			Default: []string{"50 per hour"},
			GetFile: "100 per minute",
		},
		Monitoring: app.MonitoringConfig{
			Prometheus:       app.PrometheusConfig{Enabled: true},
			ReadinessTimeout: time.Second,
		},
	}
}

func TestBootstrapIngestionStack(t *testing.T) {
	stack, err := Bootstrap(context.Background(), localConfig(t), Needs{Service: api.IngestionServiceName, Blobs: true}, zap.NewNop())
	require.NoError(t, err)

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.Blobs)
	require.Nil(t, stack.Cache)
	require.Nil(t, stack.Cleaner)
	require.Same(t, stack.Monitor, monitoring.CurrentModule())

	deps := stack.Dependencies()
	require.Nil(t, deps.Cache)
	require.Equal(t, "aec-data-local", deps.Blobs.Bucket())

	require.NoError(t, stack.Shutdown(context.Background()))
	require.Nil(t, monitoring.CurrentModule())
	require.NoError(t, stack.Shutdown(context.Background()))
}

func TestBootstrapQueryStackPurgesCacheOnShutdown(t *testing.T) {
	cfg := localConfig(t)
	stack, err := Bootstrap(context.Background(), cfg, Needs{Service: api.QueryServiceName, Cache: true}, zap.NewNop())
	require.NoError(t, err)

	require.Nil(t, stack.Blobs)
	require.NotNil(t, stack.Cache)
	require.NotNil(t, stack.Cache.Purger)
	require.NotNil(t, stack.Cleaner)

	ctx := context.Background()
	store := stack.Dependencies().Cache
	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, stack.Shutdown(ctx))
	require.Nil(t, stack.DB)

	reopened, err := app.OpenDatabase(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(reopened) })
	var count int64
	require.NoError(t, reopened.Table("cache_entries").Count(&count).Error)
	require.Zero(t, count)
}

func TestBootstrapRejectsBadBackends(t *testing.T) {
	cfg := localConfig(t)
	cfg.Storage.Backend = "azure"
	_, err := Bootstrap(context.Background(), cfg, Needs{Service: api.IngestionServiceName, Blobs: true}, zap.NewNop())
	require.ErrorContains(t, err, "open blob store")
	require.Nil(t, monitoring.CurrentModule())

	cfg = localConfig(t)
	cfg.Database.Driver = "oracle"
	_, err = Bootstrap(context.Background(), cfg, Needs{Service: api.QueryServiceName}, zap.NewNop())
	require.ErrorContains(t, err, "open database")

	_, err = Bootstrap(context.Background(), nil, Needs{}, zap.NewNop())
	require.Error(t, err)
}

func TestLoadConfigPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9100\n"), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)

	cfg, err = LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)

	_, err = LoadConfig(filepath.Join(dir, "missing"))
	require.ErrorContains(t, err, "does not exist")
}

func TestServeListenerShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	go func() {
		done <- ServeListener(ctx, app.ServerConfig{ShutdownTimeout: time.Second}, listener, handler, zap.NewNop())
	}()

	url := fmt.Sprintf("http://%s/health", listener.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
