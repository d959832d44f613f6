package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aecdata/pipeline/internal/monitoring"
)

// Metrics records request counts and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		monitoring.RecordAPIRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
