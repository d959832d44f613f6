package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	uploads        *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	uploadBytes    prometheus.Counter
	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheErrors    *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
}

func newCollectors(namespace string, constLabels prometheus.Labels) *collectors {
	uploadBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

	return &collectors{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "file_uploads_total",
				Help:        "Total file uploads by outcome",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		uploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "file_upload_duration_seconds",
				Help:        "Time spent on upload attempts, rejected and failed ones included",
				Buckets:     uploadBuckets,
				ConstLabels: constLabels,
			},
		),
		uploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "file_upload_bytes_total",
				Help:        "Bytes written to object storage by successful uploads",
				ConstLabels: constLabels,
			},
		),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "api_requests_total",
				Help:        "Total API requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint", "status"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "api_request_duration_seconds",
				Help:        "API request latency",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "cache_hits_total",
				Help:        "Cache hits by operation",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "cache_misses_total",
				Help:        "Cache misses by operation",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "cache_errors_total",
				Help:        "Cache read or write failures by operation",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "rate_limit_rejections_total",
				Help:        "Requests rejected by the rate limiter",
				ConstLabels: constLabels,
			},
			[]string{"limit"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.uploads,
		c.uploadDuration,
		c.uploadBytes,
		c.apiRequests,
		c.apiLatency,
		c.cacheHits,
		c.cacheMisses,
		c.cacheErrors,
		c.rateLimited,
	}
}
