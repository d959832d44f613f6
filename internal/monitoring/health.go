package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultProbeTimeout bounds a readiness probe registered without its own timeout.
const DefaultProbeTimeout = 3 * time.Second

// ProbeStatus is the outcome of one dependency probe.
type ProbeStatus string

const (
	StatusUp      ProbeStatus = "up"
	StatusDown    ProbeStatus = "down"
	StatusTimeout ProbeStatus = "timeout"
)

// ProbeResult is the JSON shape of one probe in a /ready response.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport is the outcome of a readiness evaluation. Checks keep
// registration order.
type HealthReport struct {
	Ready  bool          `json:"ready"`
	Checks []ProbeResult `json:"checks"`
}

// Failure summarises the failing probes as "component: details; ...".
func (r HealthReport) Failure() string {
	var parts []string
	for _, check := range r.Checks {
		if check.Status == StatusUp {
			continue
		}
		msg := check.Component
		if check.Details != "" {
			msg += ": " + check.Details
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// Probe reports whether a dependency is usable. It must honour ctx.
type Probe func(ctx context.Context) error

// Check is a named readiness probe.
type Check struct {
	Name    string
	Timeout time.Duration
	Probe   Probe
}

// HealthManager holds the readiness probes of one service.
type HealthManager struct {
	mu     sync.RWMutex
	checks []Check
}

// NewHealthManager constructs an empty health manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{}
}

// Register adds a readiness probe. Unnamed checks are ignored.
func (m *HealthManager) Register(check Check) {
	if check.Name == "" {
		return
	}
	m.mu.Lock()
	m.checks = append(m.checks, check)
	m.mu.Unlock()
}

// Readiness runs every probe concurrently, each under its own timeout.
func (m *HealthManager) Readiness(ctx context.Context) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.RLock()
	checks := append([]Check(nil), m.checks...)
	m.mu.RUnlock()

	report := HealthReport{Ready: true, Checks: make([]ProbeResult, len(checks))}

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			report.Checks[i] = runProbe(ctx, check)
		}(i, check)
	}
	wg.Wait()

	for _, result := range report.Checks {
		if result.Status != StatusUp {
			report.Ready = false
		}
	}
	return report
}

func runProbe(ctx context.Context, check Check) (result ProbeResult) {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = probeResult(check.Name, fmt.Errorf("%v", rec), time.Since(start))
		}
	}()

	if check.Probe == nil {
		return probeResult(check.Name, errors.New("probe not configured"), 0)
	}
	return probeResult(check.Name, check.Probe(probeCtx), time.Since(start))
}

func probeResult(component string, err error, duration time.Duration) ProbeResult {
	result := ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusTimeout
		result.Details = err.Error()
	default:
		result.Status = StatusDown
		result.Details = err.Error()
	}
	return result
}
