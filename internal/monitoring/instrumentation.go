package monitoring

import (
	"strconv"
	"strings"
	"time"
)

// Upload outcomes.
const (
	UploadSuccess  = "success"
	UploadRejected = "rejected"
	UploadError    = "error"
)

// RecordUpload counts an upload attempt and, for stored files, its latency and size.
func RecordUpload(status string, size int64, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	status = normalizeLabel(status)
	module.metrics.uploads.WithLabelValues(status).Inc()
	if duration < 0 {
		duration = 0
	}
	module.metrics.uploadDuration.Observe(duration.Seconds())
	if status == UploadSuccess && size > 0 {
		module.metrics.uploadBytes.Add(float64(size))
	}
}

// RecordAPIRequest counts a finished request and observes its latency.
// endpoint should be the route template so label cardinality stays bounded.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	endpoint = sanitizePath(endpoint)
	if endpoint == "" {
		endpoint = "unmatched"
	}
	module.metrics.apiRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	module.metrics.apiLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a memoized read outcome: "hit", "miss" or "error".
func RecordCacheLookup(operation, outcome string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	operation = normalizeLabel(operation)
	switch normalizeLabel(outcome) {
	case "hit":
		module.metrics.cacheHits.WithLabelValues(operation).Inc()
	case "miss":
		module.metrics.cacheMisses.WithLabelValues(operation).Inc()
	default:
		module.metrics.cacheErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRateLimited counts a request rejected by the named limit.
func RecordRateLimited(limit string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	module.metrics.rateLimited.WithLabelValues(normalizeLabel(limit)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
