package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/app"
	"github.com/aecdata/pipeline/internal/cache"
	"github.com/aecdata/pipeline/internal/handlers"
	"github.com/aecdata/pipeline/internal/middleware"
	"github.com/aecdata/pipeline/internal/monitoring"
	"github.com/aecdata/pipeline/internal/monitoring/checks"
	"github.com/aecdata/pipeline/internal/services"
	"github.com/aecdata/pipeline/internal/storage"
	"github.com/aecdata/pipeline/pkg/logger"
)

// Service names reported by /health and attached to metrics.
const (
	IngestionServiceName = "data-ingestion-service"
	QueryServiceName     = "data-api-service"
)

// Dependencies carries the long-lived clients shared by the routers.
type Dependencies struct {
	DB      *gorm.DB
	Blobs   storage.BlobStore
	Cache   cache.Store
	Monitor *monitoring.Module
}

// NewIngestionRouter builds the upload service: multipart ingestion plus the
// record lookups it needs.
func NewIngestionRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.Blobs == nil {
		return nil, errors.New("blob store must be provided")
	}

	ingest, err := services.NewIngestionService(deps.DB, deps.Blobs,
		services.WithAllowedExtensions(cfg.Upload.AllowedExtensions),
		services.WithMaxUploadSize(cfg.Upload.MaxSize),
		services.WithPresignExpiry(cfg.Storage.PresignExpiry),
	)
	if err != nil {
		return nil, err
	}
	query, err := services.NewFileQueryService(deps.DB)
	if err != nil {
		return nil, err
	}

	r := newEngine(cfg)

	health := healthManager(deps.Monitor)
	timeout := cfg.Monitoring.ReadinessTimeout
	health.Register(checks.Database(deps.DB, timeout))
	health.Register(checks.Storage(deps.Blobs, timeout))
	registerOperationalRoutes(r, cfg, IngestionServiceName, health, deps.Monitor)

	files := handlers.NewFileHandler(ingest, query)
	v1 := r.Group("/api/v1/files")
	{
		v1.POST("/upload", files.Upload)
		v1.GET("", files.List)
		v1.GET("/:id", files.Get)
		v1.GET("/:id/download", files.Download)
	}

	return r, nil
}

// NewQueryRouter builds the read API: cached, rate-limited lookups over the
// metadata table.
func NewQueryRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}

	limits, err := queryLimits(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	query, err := services.NewFileQueryService(deps.DB)
	if err != nil {
		return nil, err
	}

	memo := cache.NewMemoizer(deps.Cache,
		cache.WithLogger(logger.WithModule("cache")),
		cache.WithObserver(func(operation string, outcome cache.Outcome) {
			monitoring.RecordCacheLookup(operation, string(outcome))
		}),
	)
	limiter := middleware.NewRateLimiter(middleware.NewRateStore(deps.Cache), cfg.RateLimit.Enabled)

	r := newEngine(cfg)

	health := healthManager(deps.Monitor)
	timeout := cfg.Monitoring.ReadinessTimeout
	health.Register(checks.Database(deps.DB, timeout))
	if deps.Cache != nil {
		health.Register(checks.Cache(deps.Cache, timeout))
	}
	registerOperationalRoutes(r, cfg, QueryServiceName, health, deps.Monitor, limiter.Handler(limits.fallback))

	files := handlers.NewFileQueryHandler(query, memo, handlers.QueryCacheTTL{
		Item: cfg.Cache.ItemTTL(),
		List: cfg.Cache.ListTTL(),
	})
	v1 := r.Group("/api/v1")
	{
		v1.GET("/files", limiter.Handler(limits.listFiles), files.ListFiles)
		v1.GET("/files/:id", limiter.Handler(limits.getFile), files.GetFile)
		v1.GET("/projects/:project_id/stats", limiter.Handler(limits.projectStats), files.ProjectStats)
	}

	return r, nil
}

func newEngine(cfg *app.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
		AllowCredentials: cfg.Server.CORS.AllowCredentials,
		MaxAge:           cfg.Server.CORS.MaxAge,
	}))

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)
	return r
}

func healthManager(module *monitoring.Module) *monitoring.HealthManager {
	if module != nil && module.Health() != nil {
		return module.Health()
	}
	return monitoring.NewHealthManager()
}

// registerOperationalRoutes mounts /health, /ready and the metrics endpoint.
// Health probes are never rate limited; metricsGuards apply to the scrape endpoint only.
func registerOperationalRoutes(r *gin.Engine, cfg *app.Config, service string, health *monitoring.HealthManager, module *monitoring.Module, metricsGuards ...gin.HandlerFunc) {
	h := handlers.NewHealthHandler(service, health)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	if module == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	chain := append(append([]gin.HandlerFunc{}, metricsGuards...), gin.WrapH(module.Handler()))
	r.GET(endpoint, chain...)
}

type routeLimits struct {
	fallback     middleware.Limit
	getFile      middleware.Limit
	listFiles    middleware.Limit
	projectStats middleware.Limit
}

func queryLimits(cfg app.RateLimitConfig) (routeLimits, error) {
	var (
		limits routeLimits
		err    error
	)
	if limits.fallback, err = parseLimit("default", cfg.Default...); err != nil {
		return limits, err
	}
	if limits.getFile, err = parseLimit(handlers.OperationGetFile, cfg.GetFile); err != nil {
		return limits, err
	}
	if limits.listFiles, err = parseLimit(handlers.OperationListFiles, cfg.ListFiles); err != nil {
		return limits, err
	}
	if limits.projectStats, err = parseLimit(handlers.OperationProjectStats, cfg.ProjectStats); err != nil {
		return limits, err
	}
	return limits, nil
}

func parseLimit(name string, texts ...string) (middleware.Limit, error) {
	limit := middleware.Limit{Name: name}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		rate, err := middleware.ParseRate(text)
		if err != nil {
			return limit, fmt.Errorf("rate_limit.%s: %w", name, err)
		}
		limit.Rates = append(limit.Rates, rate)
	}
	return limit, nil
}
