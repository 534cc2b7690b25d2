// Package rights maps principals to roles and roles to rights.
//
// Every decision re-reads the user registry, so role assignments and role
// table edits apply to the next request without a rebuild. Anything the
// resolver cannot establish is a denial.
package rights

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/internal/telemetry"
	"github.com/marmos91/warden/pkg/models"
)

// ErrForbidden is returned by Authorize when the principal lacks the right.
var ErrForbidden = errors.New("forbidden")

// RegistryReader loads the current user registry.
type RegistryReader interface {
	LoadRegistry(ctx context.Context) (*models.UserRegistry, error)
}

// CredentialSource reports the current canonical admin.
type CredentialSource interface {
	PrimaryCredential() models.PrimaryCredential
}

// Resolver answers role and rights questions.
type Resolver struct {
	registry    RegistryReader
	canonical   CredentialSource
	defaultRole string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultRole sets the role of principals that have no registry record.
// Directory and host users authenticate without one.
func WithDefaultRole(role string) Option {
	return func(r *Resolver) {
		if role != "" {
			r.defaultRole = role
		}
	}
}

// NewResolver creates a resolver. canonical is usually the auth.Manager,
// whose snapshot carries the canonical admin username.
func NewResolver(registry RegistryReader, canonical CredentialSource, opts ...Option) *Resolver {
	r := &Resolver{
		registry:    registry,
		canonical:   canonical,
		defaultRole: models.RoleViewer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRole returns the role given to principals without a record.
func (r *Resolver) DefaultRole() string { return r.defaultRole }

// KnownRights lists the fixed right names.
func KnownRights() []string {
	return models.KnownRights()
}

// ResolveRole returns the role of username: admin for the canonical admin,
// otherwise the role of the first registry record with that username,
// otherwise the default role.
func (r *Resolver) ResolveRole(ctx context.Context, username string) (string, error) {
	role, _, err := r.resolve(ctx, username)
	return role, err
}

// resolve returns the role and the registry it was resolved against. The
// registry is nil when it was not needed.
func (r *Resolver) resolve(ctx context.Context, username string) (string, *models.UserRegistry, error) {
	if r.canonical.PrimaryCredential().IsCanonical(username) {
		return models.RoleAdmin, nil, nil
	}

	reg, err := r.registry.LoadRegistry(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("rights: load registry: %w", err)
	}
	if rec, ok := reg.Lookup(username); ok {
		return rec.Role, reg, nil
	}
	return r.defaultRole, reg, nil
}

// Rights returns a copy of the effective rights table of username. Unknown
// rights and an unknown role are absent, which means denied.
func (r *Resolver) Rights(ctx context.Context, username string) (string, models.RoleRights, error) {
	role, reg, err := r.resolve(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if reg == nil {
		if reg, err = r.registry.LoadRegistry(ctx); err != nil {
			return "", nil, fmt.Errorf("rights: load registry: %w", err)
		}
	}

	table := reg.RoleTable()[role]
	out := make(models.RoleRights, len(models.KnownRights()))
	for _, right := range models.KnownRights() {
		out[right] = table[right]
	}
	return role, out, nil
}

// HasRight reports whether username holds right. Unknown rights, unknown
// roles and read errors all deny.
func (r *Resolver) HasRight(ctx context.Context, username, right string) bool {
	ctx, span := telemetry.StartAuthorizeSpan(ctx, username, right)
	defer span.End()

	if !models.IsKnownRight(right) {
		logger.WarnCtx(ctx, "Rights check for unknown right", logger.Right(right))
		span.SetAttributes(telemetry.Decision(false))
		return false
	}

	role, reg, err := r.resolve(ctx, username)
	if err != nil {
		logger.WarnCtx(ctx, "Rights check failed", logger.Username(username), logger.Right(right), logger.Err(err))
		telemetry.RecordError(ctx, err)
		return false
	}
	if reg == nil {
		if reg, err = r.registry.LoadRegistry(ctx); err != nil {
			logger.WarnCtx(ctx, "Rights check failed", logger.Username(username), logger.Right(right), logger.Err(err))
			telemetry.RecordError(ctx, err)
			return false
		}
	}

	allowed := reg.RoleTable()[role][right]
	span.SetAttributes(telemetry.Role(role), telemetry.Decision(allowed))
	return allowed
}

// Authorize returns nil when username holds right, ErrForbidden otherwise.
func (r *Resolver) Authorize(ctx context.Context, username, right string) error {
	if r.HasRight(ctx, username, right) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks %s", ErrForbidden, username, right)
}
