package app

import (
	"strings"

	"github.com/aecdata/pipeline/pkg/logger"
)

// ConfigureLogging initialises the global logger for service, defaulting to info level JSON output.
func ConfigureLogging(cfg ServerConfig, service string) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.Configure(logger.Options{
		Level:   level,
		Format:  strings.TrimSpace(cfg.LogFormat),
		Service: service,
	})
}
