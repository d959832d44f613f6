package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aecdata/pipeline/internal/monitoring"
	appErrors "github.com/aecdata/pipeline/pkg/errors"
	"github.com/aecdata/pipeline/pkg/response"
)

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	service string
	health  *monitoring.HealthManager
	now     func() time.Time
}

// NewHealthHandler constructs a HealthHandler for the named service.
func NewHealthHandler(service string, health *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{service: service, health: health, now: time.Now}
}

// Health reports that the process is serving. Dependencies are not probed.
func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.service,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Ready probes every readiness dependency and answers 503 when any is down.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.health == nil {
		response.Success(c, http.StatusOK, gin.H{"status": "ready", "checks": []monitoring.ProbeResult{}})
		return
	}

	report := h.health.Readiness(requestContext(c))
	if !report.Ready {
		unavailable := appErrors.ErrDependencyUnavailable
		response.Success(c, unavailable.StatusCode, gin.H{
			"status": "not_ready",
			"code":   unavailable.Code,
			"error":  report.Failure(),
			"checks": report.Checks,
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status": "ready",
		"checks": report.Checks,
	})
}
