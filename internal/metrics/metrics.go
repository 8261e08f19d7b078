// Package metrics exposes prometheus instrumentation for the SQRL server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Metrics holds the server collectors.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	nutsIssued prometheus.Counter
	throttled  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqrl",
			Subsystem: "backchannel",
			Name:      "requests_total",
			Help:      "Back-channel requests by command and outcome.",
		}, []string{"cmd", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sqrl",
			Subsystem: "backchannel",
			Name:      "duration_seconds",
			Help:      "Back-channel request processing time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cmd"}),
		nutsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqrl",
			Name:      "nuts_issued_total",
			Help:      "Nuts issued to clients.",
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqrl",
			Subsystem: "backchannel",
			Name:      "throttled_total",
			Help:      "Back-channel requests rejected by the rate limiter.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.nutsIssued, m.throttled} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest records one back-channel transaction. A nil Metrics is a no-op.
func (m *Metrics) ObserveRequest(cmd, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if cmd == "" {
		cmd = "unknown"
	}
	m.requests.WithLabelValues(cmd, outcome).Inc()
	m.duration.WithLabelValues(cmd).Observe(elapsed.Seconds())
}

// NutIssued counts an issued nut.
func (m *Metrics) NutIssued() {
	if m == nil {
		return
	}
	m.nutsIssued.Inc()
}

// Throttled counts a rate limited request.
func (m *Metrics) Throttled() {
	if m == nil {
		return
	}
	m.throttled.Inc()
}
