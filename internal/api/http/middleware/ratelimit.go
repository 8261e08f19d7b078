package middleware

import (
	"net/http"
	"time"

	"github.com/dtroode/sqrl-server/internal/api/http/handler"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/metrics"
	"github.com/dtroode/sqrl-server/internal/ratelimiter"
)

// RateLimit throttles requests per remote IP before they reach the protocol.
type RateLimit struct {
	limiter *ratelimiter.MapLimiter
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewRateLimit creates a RateLimit middleware. A nil limiter lets everything through.
func NewRateLimit(limiter *ratelimiter.MapLimiter, m *metrics.Metrics, logger *logger.Logger) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleHTTP answers 429 once the caller's bucket is empty.
func (m *RateLimit) HandleHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := handler.RemoteIP(r).String()
		if !m.limiter.Allow(key, m.now()) {
			m.metrics.Throttled()
			m.logger.Warn("Rate limit: request throttled",
				"ip", key,
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
