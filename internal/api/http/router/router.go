package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/sqrl-server/internal/api/http/handler"
	"github.com/dtroode/sqrl-server/internal/api/http/middleware"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/metrics"
	"github.com/dtroode/sqrl-server/internal/ratelimiter"
)

// Paths names the HTTP routes.
type Paths struct {
	Backchannel     string
	CPS             string
	LoginSuccessURL string
}

// Router represents the HTTP router for the SQRL back-channel.
type Router struct {
	backchannel handler.BackchannelService
	cps         handler.CPSService
	paths       Paths
	limiter     *ratelimiter.MapLimiter
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	logger      *logger.Logger
}

// New creates a new HTTP Router. A nil gatherer disables /metrics.
func New(
	backchannel handler.BackchannelService,
	cps handler.CPSService,
	paths Paths,
	limiter *ratelimiter.MapLimiter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *logger.Logger,
) *Router {
	return &Router{
		backchannel: backchannel,
		cps:         cps,
		paths:       paths,
		limiter:     limiter,
		metrics:     m,
		gatherer:    gatherer,
		logger:      logger,
	}
}

// Register builds the handler tree. Only the back-channel is rate limited.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)
	rateLimit := middleware.NewRateLimit(r.limiter, r.metrics, r.logger)

	backchannelHandler := handler.NewBackchannel(r.backchannel, r.logger)
	cpsHandler := handler.NewCPS(r.cps, r.paths.LoginSuccessURL, r.logger)

	mux := http.NewServeMux()
	mux.Handle("POST "+r.paths.Backchannel, rateLimit.HandleHTTP(http.HandlerFunc(backchannelHandler.Handle)))
	mux.HandleFunc("GET "+r.paths.CPS, cpsHandler.Handle)
	if r.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}

	return logging.HandleHTTP(mux)
}
