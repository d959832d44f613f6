package monitoring

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every metric name. Empty keeps the bare names
	// (file_uploads_total, cache_hits_total, ...).
	Namespace string
	// Service is attached to every metric as a constant "service" label when set.
	Service string
	// DisableGoCollector skips registration of the Go runtime collector when true.
	DisableGoCollector bool
	// DisableProcessCollector skips registration of the process collector when true.
	DisableProcessCollector bool
}

// Module owns the Prometheus registry, the service collectors and the health probes.
type Module struct {
	registry *prometheus.Registry
	metrics  *collectors
	health   *HealthManager
}

// NewModule builds a Module around a private registry so each service exposes
// only its own series.
func NewModule(opts Options) (*Module, error) {
	var constLabels prometheus.Labels
	if opts.Service != "" {
		constLabels = prometheus.Labels{"service": opts.Service}
	}
	metrics := newCollectors(opts.Namespace, constLabels)

	registered := metrics.all()
	if !opts.DisableGoCollector {
		registered = append(registered, promcollectors.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		registered = append(registered, promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}))
	}

	registry := prometheus.NewRegistry()
	for _, collector := range registered {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return &Module{registry: registry, metrics: metrics, health: NewHealthManager()}, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler serving Prometheus metrics for this module.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Health returns the readiness probes served on /ready.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var globalModule atomic.Pointer[Module]

// SetModule configures the process-wide monitoring module used by instrumentation helpers.
func SetModule(module *Module) {
	globalModule.Store(module)
}

// CurrentModule returns the process-wide monitoring module, or nil when unset.
func CurrentModule() *Module {
	return globalModule.Load()
}
