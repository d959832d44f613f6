package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration shared by the ingestion and data-api services.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Upload     UploadConfig     `mapstructure:"upload"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// DatabaseConfig describes the metadata database connection.
type DatabaseConfig struct {
	Driver      string       `mapstructure:"driver"`
	Path        string       `mapstructure:"path"`
	DSN         string       `mapstructure:"dsn"`
	Host        string       `mapstructure:"host"`
	Port        int          `mapstructure:"port"`
	Name        string       `mapstructure:"name"`
	User        string       `mapstructure:"user"`
	Password    string       `mapstructure:"password"`
	AutoMigrate bool         `mapstructure:"auto_migrate"`
	Pool        DBPoolConfig `mapstructure:"pool"`
}

// DBPoolConfig sizes the connection pool.
type DBPoolConfig struct {
	Size        int           `mapstructure:"size"`
	MaxOverflow int           `mapstructure:"max_overflow"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// CacheConfig selects the cache and rate-limit backend.
type CacheConfig struct {
	// Backend is redis, memory or database. Empty picks redis when a URL or
	// address is configured and memory otherwise.
	Backend        string           `mapstructure:"backend"`
	TTLSeconds     int              `mapstructure:"ttl_seconds"`
	ListTTLSeconds int              `mapstructure:"list_ttl_seconds"`
	PurgeSchedule  string           `mapstructure:"purge_schedule"`
	Redis          RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	URL      string        `mapstructure:"url"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Backend         string        `mapstructure:"backend"`
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	SessionToken    string        `mapstructure:"session_token"`
	Bucket          string        `mapstructure:"bucket"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	CreateBucket    bool          `mapstructure:"create_bucket"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// UploadConfig constrains accepted uploads.
type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// RateLimitConfig declares per-route quotas such as "100 per minute".
type RateLimitConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Default      []string `mapstructure:"default"`
	GetFile      string   `mapstructure:"get_file"`
	ListFiles    string   `mapstructure:"list_files"`
	ProjectStats string   `mapstructure:"project_stats"`
}

// MonitoringConfig configures metrics and readiness probes.
type MonitoringConfig struct {
	Namespace        string           `mapstructure:"namespace"`
	Prometheus       PrometheusConfig `mapstructure:"prometheus"`
	ReadinessTimeout time.Duration    `mapstructure:"readiness_timeout"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// legacyEnv maps configuration keys to the unprefixed variable names used by
// existing deployments. The AEC_ form is checked first.
var legacyEnv = map[string]string{
	"database.dsn":              "DATABASE_URL",
	"cache.redis.url":           "REDIS_URL",
	"cache.ttl_seconds":         "CACHE_TTL",
	"storage.access_key_id":     "AWS_ACCESS_KEY_ID",
	"storage.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"storage.session_token":     "AWS_SESSION_TOKEN",
	"storage.region":            "AWS_REGION",
	"storage.bucket":            "S3_BUCKET_NAME",
	"storage.endpoint":          "S3_ENDPOINT",
	"upload.max_size":           "MAX_UPLOAD_SIZE",
	"upload.allowed_extensions": "ALLOWED_EXTENSIONS",
	"server.log_level":          "LOG_LEVEL",
	"server.port":               "PORT",
}

const envPrefix = "AEC"

// LoadConfig initialises configuration from config.yaml (in ./config or paths),
// AEC_ prefixed environment variables and the legacy variable names.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 0)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 600)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.path", "./data/aec.sqlite")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.pool.size", 10)
	v.SetDefault("database.pool.max_overflow", 20)
	v.SetDefault("database.pool.max_lifetime", "30m")

	v.SetDefault("cache.backend", "")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.list_ttl_seconds", 60)
	v.SetDefault("cache.purge_schedule", "@every 10m")
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "aec-data-local")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.create_bucket", false)
	v.SetDefault("storage.presign_expiry", "15m")

	v.SetDefault("upload.max_size", 100*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{".dwg", ".rvt", ".ifc", ".nwd", ".pdf", ".txt"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default", []string{"200 per day", "50 per hour"})
	v.SetDefault("rate_limit.get_file", "100 per minute")
	v.SetDefault("rate_limit.list_files", "50 per minute")
	v.SetDefault("rate_limit.project_stats", "30 per minute")

	v.SetDefault("monitoring.namespace", "")
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.readiness_timeout", "3s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Addr returns the listen address, using fallback when no port is configured.
func (s ServerConfig) Addr(fallback int) string {
	port := s.Port
	if port <= 0 {
		port = fallback
	}
	return fmt.Sprintf(":%d", port)
}
