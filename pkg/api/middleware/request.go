package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/internal/telemetry"
	"github.com/marmos91/warden/pkg/metrics"
)

// LogContext opens a server span for the request and attaches a
// logger.LogContext carrying the request id, client IP and trace ids.
// It must run after chi's RequestID and RealIP.
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())
		clientIP := clientAddr(r.RemoteAddr)

		ctx, span := telemetry.StartSpan(r.Context(), "api.request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(telemetry.RequestID(requestID), telemetry.ClientIP(clientIP)),
		)
		defer span.End()

		lc := logger.NewLogContext(requestID, clientIP)
		if telemetry.IsEnabled() {
			lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
		}
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, lc)))
	})
}

// Metrics reports every request to m labelled by its chi route pattern.
// A nil m disables the middleware.
func Metrics(m metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			m.ObserveRequest(r.Method, RoutePattern(r), statusOf(ww), time.Since(start))
		})
	}
}

// RoutePattern returns the matched chi route, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func statusOf(ww chimw.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// clientAddr strips the port RealIP may have left in place.
func clientAddr(remote string) string {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
