package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for access control spans.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// ========================================================================
	// HTTP attributes
	// ========================================================================
	AttrHTTPMethod = "http.request.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.response.status_code"
	AttrRequestID  = "request.id"

	// ========================================================================
	// Authentication attributes
	// ========================================================================
	AttrUsername     = "user.name"
	AttrDomain       = "user.domain"
	AttrAuthMethod   = "auth.method"
	AttrAuthPrimary  = "auth.primary_method"
	AttrAuthResult   = "auth.result"
	AttrAuthFallback = "auth.fallback"

	// ========================================================================
	// Authorization attributes
	// ========================================================================
	AttrRole     = "authz.role"
	AttrRight    = "authz.right"
	AttrDecision = "authz.decision"

	// ========================================================================
	// Store attributes
	// ========================================================================
	AttrStoreType = "store.type"
	AttrDocument  = "store.document"
	AttrAttempt   = "store.attempt"
)

// Span names.
// Format: <component>.<operation>
const (
	SpanAuthenticate   = "auth.authenticate"
	SpanAuthProvider   = "auth.provider"
	SpanAuthRebuild    = "auth.rebuild"
	SpanAuthMutate     = "auth.mutate"
	SpanAuthorize      = "rights.authorize"
	SpanBootstrap      = "bootstrap.ensure_credential"
	SpanStoreUpdate    = "store.update"
	SpanAccountsPrefix = "accounts."
	SpanHTTPRequest    = "http.request"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// RequestID returns an attribute for the request correlation ID
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Username returns an attribute for the principal name
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// Domain returns an attribute for the principal's domain
func Domain(domain string) attribute.KeyValue {
	return attribute.String(AttrDomain, domain)
}

// AuthMethod returns an attribute for the provider that answered
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuthMethod, method)
}

// AuthPrimary returns an attribute for the configured primary method
func AuthPrimary(method string) attribute.KeyValue {
	return attribute.String(AttrAuthPrimary, method)
}

// AuthResult returns an attribute for the authentication outcome
func AuthResult(result string) attribute.KeyValue {
	return attribute.String(AttrAuthResult, result)
}

// AuthFallback returns an attribute telling whether the local fallback answered
func AuthFallback(fallback bool) attribute.KeyValue {
	return attribute.Bool(AttrAuthFallback, fallback)
}

// Role returns an attribute for a resolved role
func Role(role string) attribute.KeyValue {
	return attribute.String(AttrRole, role)
}

// Right returns an attribute for a checked right
func Right(right string) attribute.KeyValue {
	return attribute.String(AttrRight, right)
}

// Decision returns an attribute for an authorization decision
func Decision(allowed bool) attribute.KeyValue {
	if allowed {
		return attribute.String(AttrDecision, "allow")
	}
	return attribute.String(AttrDecision, "deny")
}

// StoreType returns an attribute for the store backend
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Attempt returns an attribute for a retry attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// StartAuthSpan starts a span for an authentication step.
// The password never becomes an attribute.
func StartAuthSpan(ctx context.Context, name, username string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, Username(username))
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartAuthorizeSpan starts a span for a rights check.
func StartAuthorizeSpan(ctx context.Context, username, right string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanAuthorize, trace.WithAttributes(Username(username), Right(right)))
}

// StartInternalSpan starts a span for an internal operation such as a rebuild
// or a store transaction.
func StartInternalSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}
