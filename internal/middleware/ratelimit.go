package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aecdata/pipeline/internal/monitoring"
	appErrors "github.com/aecdata/pipeline/pkg/errors"
	"github.com/aecdata/pipeline/pkg/logger"
	"github.com/aecdata/pipeline/pkg/response"
)

// Rate is a fixed-window quota: at most Limit requests per Window.
type Rate struct {
	Limit  int
	Window time.Duration
}

var rateUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRate reads "100 per minute", "50 per 1 hour" or "200/day".
func ParseRate(text string) (Rate, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Replace(normalized, "/", " per ", 1)
	fields := strings.Fields(normalized)

	if len(fields) < 3 || len(fields) > 4 || fields[1] != "per" {
		return Rate{}, fmt.Errorf("invalid rate %q", text)
	}

	limit, err := strconv.Atoi(fields[0])
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q: limit must be a positive integer", text)
	}

	multiplier := 1
	unit := fields[2]
	if len(fields) == 4 {
		multiplier, err = strconv.Atoi(fields[2])
		if err != nil || multiplier <= 0 {
			return Rate{}, fmt.Errorf("invalid rate %q: window multiplier must be a positive integer", text)
		}
		unit = fields[3]
	}

	base, ok := rateUnits[strings.TrimSuffix(unit, "s")]
	if !ok {
		return Rate{}, fmt.Errorf("invalid rate %q: unknown unit %q", text, unit)
	}
	return Rate{Limit: limit, Window: time.Duration(multiplier) * base}, nil
}

// MustParseRates parses each text with ParseRate and panics on error.
func MustParseRates(texts ...string) []Rate {
	rates := make([]Rate, 0, len(texts))
	for _, text := range texts {
		rate, err := ParseRate(text)
		if err != nil {
			panic(err)
		}
		rates = append(rates, rate)
	}
	return rates
}

// String renders the quota the way it is reported to clients, e.g. "100 per 1 minute".
func (r Rate) String() string {
	for _, unit := range []string{"day", "hour", "minute", "second"} {
		base := rateUnits[unit]
		if r.Window >= base && r.Window%base == 0 {
			return fmt.Sprintf("%d per %d %s", r.Limit, int64(r.Window/base), unit)
		}
	}
	return fmt.Sprintf("%d per %s", r.Limit, r.Window)
}

// Limit is a named group of quotas that all apply to the same route.
type Limit struct {
	Name  string
	Rates []Rate
}

// RateLimiter enforces Limits against a shared RateStore keyed by client address.
// Store failures let the request through and are logged.
type RateLimiter struct {
	store   RateStore
	enabled bool
	log     *zap.Logger
}

// NewRateLimiter constructs a limiter. A nil store or enabled=false disables limiting.
func NewRateLimiter(store RateStore, enabled bool) *RateLimiter {
	return &RateLimiter{
		store:   store,
		enabled: enabled && store != nil,
		log:     logger.WithModule("ratelimit"),
	}
}

type rateState struct {
	rate      Rate
	count     int
	remaining int
	reset     time.Duration
}

// Handler returns the middleware enforcing limit.
func (l *RateLimiter) Handler(limit Limit) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || !l.enabled || len(limit.Rates) == 0 {
			c.Next()
			return
		}

		client := c.RemoteIP()
		var tightest *rateState

		for _, rate := range limit.Rates {
			key := fmt.Sprintf("ratelimit:%s:%s:%d", limit.Name, client, int64(rate.Window/time.Second))
			count, ttl, err := l.store.Increment(c.Request.Context(), key, rate.Window)
			if err != nil {
				l.log.Warn("rate limit store unavailable",
					zap.String("limit", limit.Name),
					zap.String("client_ip", client),
					zap.Error(err),
				)
				continue
			}

			state := &rateState{rate: rate, count: count, remaining: rate.Limit - count, reset: ttl}
			if state.remaining < 0 {
				state.remaining = 0
			}

			if count > rate.Limit {
				writeRateHeaders(c, state)
				c.Header("Retry-After", strconv.Itoa(ceilSeconds(ttl)))
				monitoring.RecordRateLimited(limit.Name)
				l.log.Info("rate limit exceeded",
					zap.String("limit", limit.Name),
					zap.String("rate", rate.String()),
					zap.String("client_ip", client),
				)
				response.Abort(c, appErrors.ErrRateLimit.WithDetail(rate.String()))
				return
			}

			if tightest == nil || state.remaining < tightest.remaining {
				tightest = state
			}
		}

		if tightest != nil {
			writeRateHeaders(c, tightest)
		}
		c.Next()
	}
}

func writeRateHeaders(c *gin.Context, state *rateState) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(state.rate.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(state.remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(state.reset)))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
