package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aecdata/pipeline/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	previous := logger.Logger()
	t.Cleanup(func() { logger.Replace(previous) })

	require.NoError(t, ConfigureLogging(ServerConfig{LogLevel: "debug"}, "data-api-service"))
	require.NoError(t, ConfigureLogging(ServerConfig{LogFormat: "console"}, "data-ingestion-service"))
}
