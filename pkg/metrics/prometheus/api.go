package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/warden/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// apiMetrics is the Prometheus implementation of metrics.APIMetrics.
type apiMetrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	authorizations *prometheus.CounterVec
}

// NewAPIMetrics creates a Prometheus-backed APIMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAPIMetrics() metrics.APIMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &apiMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_api_requests_total",
				Help: "Total number of admin API requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_api_request_duration_milliseconds",
				Help:    "Duration of admin API requests in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"method", "route"},
		),
		authorizations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_authorization_decisions_total",
				Help: "Total number of rights checks by right and decision",
			},
			[]string{"right", "decision"},
		),
	}
}

func (m *apiMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *apiMetrics) RecordAuthorization(right string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.authorizations.WithLabelValues(right, decision).Inc()
}
