package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/warden/pkg/metrics"
	"github.com/marmos91/warden/pkg/metrics/prometheus"
)

// MetricsResult holds the collectors created from configuration. Every
// field is nil when metrics are disabled.
type MetricsResult struct {
	Auth  metrics.AuthMetrics
	Store metrics.StoreMetrics
	API   metrics.APIMetrics

	// Handler serves /metrics. The start command mounts it on the API router
	// when Server is nil.
	Handler http.Handler

	// Server is a dedicated /metrics listener, set when metrics.port is
	// non-zero.
	Server *http.Server
}

// InitializeMetrics creates the Prometheus registry and collectors.
//
// It must run before the store and the auth manager are created so that
// they receive live collectors.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	result := &MetricsResult{
		Auth:    prometheus.NewAuthMetrics(),
		Store:   prometheus.NewStoreMetrics(),
		API:     prometheus.NewAPIMetrics(),
		Handler: metrics.Handler(),
	}

	if cfg.Metrics.Port != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", result.Handler)
		result.Server = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return result
}
