package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyRoute     = "route"
	KeyMethod    = "method" // HTTP method
	KeyStatus    = "status" // HTTP status code

	// Principal and authentication
	KeyUsername   = "username"
	KeyRole       = "role"
	KeyRight      = "right"
	KeyAuthMethod = "auth_method" // local, directory, host
	KeyFallback   = "fallback"    // whether the local fallback decided the attempt
	KeyResult     = "result"      // success, failure
	KeyServer     = "server"      // directory server address
	KeyDomain     = "domain"      // logon domain or Kerberos realm

	// Storage
	KeyStoreType = "store_type" // file, sqlite, postgres, memory
	KeyDocument  = "document"   // primary, registry
	KeyPath      = "path"
	KeyAttempt   = "attempt"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeySource     = "source" // bootstrap tier that produced the credential
)

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestID returns a slog.Attr for the request correlation ID.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for the client IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Username returns a slog.Attr for a principal name.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Role returns a slog.Attr for a role name.
func Role(name string) slog.Attr {
	return slog.String(KeyRole, name)
}

// Right returns a slog.Attr for a right name.
func Right(name string) slog.Attr {
	return slog.String(KeyRight, name)
}

// AuthMethod returns a slog.Attr for an authentication method.
func AuthMethod(method string) slog.Attr {
	return slog.String(KeyAuthMethod, method)
}

// Document returns a slog.Attr for a credential document name.
func Document(name string) slog.Attr {
	return slog.String(KeyDocument, name)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
