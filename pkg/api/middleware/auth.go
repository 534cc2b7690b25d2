// Package middleware provides the request guards of the admin API.
//
// BasicAuth establishes who is calling; RequireRight decides whether they
// may. Both answer with RFC 7807 problems.
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/api/problem"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/metrics"
	"github.com/marmos91/warden/pkg/models"
)

// Authenticator checks a username and password. *auth.Manager implements it.
type Authenticator interface {
	Attempt(ctx context.Context, username, password string) auth.Result
}

// RightChecker answers rights questions. *rights.Resolver implements it.
type RightChecker interface {
	HasRight(ctx context.Context, username, right string) bool
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	Method   models.Method

	// Fallback is true when the local provider accepted the credential in
	// place of the configured primary method.
	Fallback bool
}

type contextKey string

const principalContextKey contextKey = "principal"

// GetPrincipal returns the caller stored by BasicAuth, or nil outside an
// authenticated route.
func GetPrincipal(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// BasicAuth authenticates the HTTP Basic credential of every request.
// A missing or rejected credential gets 401 with a challenge for realm.
func BasicAuth(a Authenticator, realm string) func(http.Handler) http.Handler {
	challenge := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", realm)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || username == "" {
				w.Header().Set("WWW-Authenticate", challenge)
				problem.Unauthorized(w, "Authentication required")
				return
			}

			ctx := r.Context()
			res := a.Attempt(ctx, username, password)
			if !res.OK {
				w.Header().Set("WWW-Authenticate", challenge)
				problem.Unauthorized(w, "Invalid credentials")
				return
			}

			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithUser(username).WithAuthMethod(res.Method.String()))
			}
			ctx = WithPrincipal(ctx, &Principal{
				Username: username,
				Method:   res.Method,
				Fallback: res.Fallback,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRight lets the request through only when the principal holds right.
// Must be used after BasicAuth. m may be nil.
func RequireRight(c RightChecker, right string, m metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				problem.Unauthorized(w, "Authentication required")
				return
			}

			allowed := c.HasRight(r.Context(), p.Username, right)
			if m != nil {
				m.RecordAuthorization(right, allowed)
			}
			if !allowed {
				logger.WarnCtx(r.Context(), "Access denied", logger.Right(right))
				problem.Forbidden(w, fmt.Sprintf("The %s right is required", right))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
