package prometheus

import (
	"time"

	"github.com/marmos91/warden/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// authMetrics is the Prometheus implementation of metrics.AuthMetrics.
type authMetrics struct {
	attempts      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rebuilds      *prometheus.CounterVec
	primaryMethod *prometheus.GaugeVec
}

// NewAuthMetrics creates a Prometheus-backed AuthMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAuthMetrics() metrics.AuthMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &authMetrics{
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_auth_attempts_total",
				Help: "Total number of authentication attempts by method, result and fallback",
			},
			[]string{"method", "result", "fallback"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "warden_auth_duration_milliseconds",
				Help: "Duration of authentication attempts in milliseconds",
				Buckets: []float64{
					1,     // local, cached hash
					10,    // bcrypt at low cost
					50,    // bcrypt at default cost
					100,   // directory on the LAN
					500,   //
					1000,  // slow directory
					5000,  //
					10000, // default provider timeout
				},
			},
			[]string{"method"},
		),
		rebuilds: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_auth_rebuilds_total",
				Help: "Total number of authentication snapshot rebuilds by status",
			},
			[]string{"status"},
		),
		primaryMethod: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_auth_primary_method",
				Help: "Currently configured primary authentication method (1 for the active method)",
			},
			[]string{"method"},
		),
	}
}

func (m *authMetrics) RecordAttempt(method string, result string, fallback bool, duration time.Duration) {
	if m == nil {
		return
	}
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.attempts.WithLabelValues(method, result, fb).Inc()
	m.duration.WithLabelValues(method).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *authMetrics) RecordRebuild(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.rebuilds.WithLabelValues(status).Inc()
}

func (m *authMetrics) SetPrimaryMethod(method string) {
	if m == nil {
		return
	}
	m.primaryMethod.Reset()
	m.primaryMethod.WithLabelValues(method).Set(1)
}
