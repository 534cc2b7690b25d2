package logger

import (
	"context"
	"time"
)

type logContextKey struct{}

// LogContext holds request-scoped logging fields. It is attached to the
// request context by the HTTP middleware and filled in as the request moves
// through authentication.
type LogContext struct {
	TraceID    string
	SpanID     string
	RequestID  string
	ClientIP   string // without port
	Route      string
	Username   string // claimed principal; set before authentication succeeds
	AuthMethod string // provider that accepted the credential
	StartTime  time.Time
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a request from clientIP.
func NewLogContext(requestID, clientIP string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone returns a shallow copy; LogContext holds no reference types.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// with returns a modified copy. Modifying a nil LogContext yields nil.
func (lc *LogContext) with(set func(*LogContext)) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		set(clone)
	}
	return clone
}

// WithUser returns a copy with the username set.
func (lc *LogContext) WithUser(username string) *LogContext {
	return lc.with(func(c *LogContext) { c.Username = username })
}

// WithAuthMethod returns a copy with the accepting provider set.
func (lc *LogContext) WithAuthMethod(method string) *LogContext {
	return lc.with(func(c *LogContext) { c.AuthMethod = method })
}

func (lc *LogContext) WithRoute(route string) *LogContext {
	return lc.with(func(c *LogContext) { c.Route = route })
}

func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	return lc.with(func(c *LogContext) { c.TraceID, c.SpanID = traceID, spanID })
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
