package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/api/handlers"
	"github.com/marmos91/warden/pkg/api/middleware"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/metrics"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/rights"
)

// Dependencies are the components the router serves.
type Dependencies struct {
	Manager  *auth.Manager
	Resolver *rights.Resolver
	Accounts *accounts.Service

	// Health backs GET /health/ready. May be nil.
	Health handlers.HealthCheck

	// Metrics receives request and authorization events. May be nil.
	Metrics metrics.APIMetrics

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - A server span and request-scoped log fields
//   - Custom request logging using the internal logger
//   - Request metrics labelled by route pattern
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health, GET /health/ready - unauthenticated probes
//   - GET /metrics - when a metrics handler is given
//   - GET /api/v1/auth/methods - public diagnostics
//   - /api/v1/... - HTTP Basic, guarded by rights
func NewRouter(cfg APIConfig, deps Dependencies) http.Handler {
	cfg.ApplyDefaults()

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogContext)
	r.Use(requestLogger)
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.WriteTimeout))

	healthHandler := handlers.NewHealthHandler(deps.Health)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := handlers.NewAuthHandler(deps.Manager, deps.Resolver, deps.Accounts)
	userHandler := handlers.NewUserHandler(deps.Accounts)
	roleHandler := handlers.NewRoleHandler(deps.Accounts)
	systemHandler := handlers.NewSystemHandler(deps.Accounts)

	requireRight := func(right string) func(http.Handler) http.Handler {
		return middleware.RequireRight(deps.Resolver, right, deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/auth/methods", authHandler.Methods)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BasicAuth(deps.Manager, cfg.Realm))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/users/me/password", userHandler.ChangeOwnPassword)

			r.Group(func(r chi.Router) {
				r.Use(requireRight(models.RightManageConfig))

				r.Get("/auth/config", authHandler.GetConfig)
				r.Put("/auth/config", authHandler.PutConfig)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Put("/{username}/role", userHandler.SetRole)
					r.Put("/{username}/password", userHandler.SetPassword)
					r.Delete("/{username}", userHandler.Delete)
				})

				r.Route("/roles", func(r chi.Router) {
					r.Get("/", roleHandler.List)
					r.Put("/{name}", roleHandler.Put)
					r.Delete("/{name}", roleHandler.Delete)
				})

				r.Post("/credentials/repair", systemHandler.RepairCredentials)
			})

			r.With(requireRight(models.RightManageService)).
				Post("/system/factory-reset", systemHandler.FactoryReset)
		})
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path
//   - Request completion (INFO level, DEBUG for probes): method, route, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		logger.DebugCtx(ctx, "API request started",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
		)

		// Wrap response writer to capture status code
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		args := []any{
			logger.KeyMethod, r.Method,
			logger.KeyRoute, middleware.RoutePattern(r),
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(float64(time.Since(start).Microseconds()) / 1000.0),
		}
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			logger.DebugCtx(ctx, "API request completed", args...)
			return
		}
		logger.InfoCtx(ctx, "API request completed", args...)
	})
}
