package auth

import (
	"context"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/models"
)

// RegistryReader loads the current user registry.
type RegistryReader interface {
	LoadRegistry(ctx context.Context) (*models.UserRegistry, error)
}

// LocalProvider checks passwords against locally stored hashes.
//
// The hash to verify against is chosen in three steps:
//  1. the primary credential's hash, when username is the canonical admin
//     and that hash is set;
//  2. otherwise the first registry record for username, if it has a hash;
//  3. otherwise, for the canonical admin's own record without a hash, the
//     primary credential's hash.
//
// The canonical admin's credential may live in either document while a
// migration is in progress; this order accepts both. The registry is read
// on every call, so per-user changes apply without a rebuild.
type LocalProvider struct {
	primary  models.PrimaryCredential
	registry RegistryReader
	hasher   credential.Hasher
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a local provider bound to a primary credential
// snapshot.
func NewLocalProvider(primary models.PrimaryCredential, registry RegistryReader, hasher credential.Hasher) *LocalProvider {
	return &LocalProvider{
		primary:  primary,
		registry: registry,
		hasher:   hasher,
	}
}

func (p *LocalProvider) Method() models.Method { return models.MethodLocal }

// IsAvailable always returns true.
func (p *LocalProvider) IsAvailable() bool { return true }

// Authenticate verifies password against the hash selected for username.
// At most one hash verification is performed.
func (p *LocalProvider) Authenticate(ctx context.Context, username, password string) bool {
	if username == "" || password == "" {
		return false
	}

	hash := p.lookupHash(ctx, username)
	if hash == "" {
		return false
	}
	return p.hasher.Verify(password, hash)
}

func (p *LocalProvider) lookupHash(ctx context.Context, username string) string {
	canonical := p.primary.IsCanonical(username)
	if canonical && p.primary.PasswordHash != "" {
		return p.primary.PasswordHash
	}

	reg, err := p.registry.LoadRegistry(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to load user registry", logger.Err(err))
		return ""
	}

	rec, ok := reg.Lookup(username)
	if !ok {
		return ""
	}
	if rec.PasswordHash != "" {
		return rec.PasswordHash
	}
	if canonical {
		return p.primary.PasswordHash
	}
	return ""
}
