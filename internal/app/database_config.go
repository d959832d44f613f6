package app

import (
	"strings"

	"github.com/aecdata/pipeline/internal/database"
)

// DatabaseOptions converts the application database configuration into database.Config.
func (d DatabaseConfig) DatabaseOptions() database.Config {
	return database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(d.Driver)),
		Path:     strings.TrimSpace(d.Path),
		DSN:      strings.TrimSpace(d.DSN),
		Host:     strings.TrimSpace(d.Host),
		Port:     d.Port,
		Name:     strings.TrimSpace(d.Name),
		User:     strings.TrimSpace(d.User),
		Password: d.Password,
		Pool: database.PoolConfig{
			Size:        d.Pool.Size,
			MaxOverflow: d.Pool.MaxOverflow,
			MaxLifetime: d.Pool.MaxLifetime,
		},
	}
}
