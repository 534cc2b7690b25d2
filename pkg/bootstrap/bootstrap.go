// Package bootstrap guarantees that the canonical admin has a usable
// password hash, migrating legacy plaintext credentials on the way.
//
// EnsureCredential is idempotent and cheap once a hash exists: later calls
// find the hash already persisted and write nothing.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/internal/telemetry"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

const (
	// DefaultUsername is the canonical admin username when the primary
	// document names none.
	DefaultUsername = "admin"

	// EnvDefaultUsername overrides DefaultUsername.
	EnvDefaultUsername = "WARDEN_BOOTSTRAP_DEFAULT_USERNAME"

	// EnvDefaultPassword sets the password used when no credential material
	// exists at all. When unset a random password is generated.
	EnvDefaultPassword = "WARDEN_BOOTSTRAP_DEFAULT_PASSWORD"
)

// Source names the material a credential was established from.
type Source string

const (
	// SourceMemory: the hash established earlier by this process.
	SourceMemory Source = "memory"

	// SourceHash: a hash already present in the primary document.
	SourceHash Source = "hash"

	// SourcePlaintext: a legacy plaintext password, now hashed and removed.
	SourcePlaintext Source = "plaintext"

	// SourceDefault: the configured default password or a generated one.
	SourceDefault Source = "default"
)

// Config holds bootstrap settings.
type Config struct {
	// DefaultUsername is used when the primary document has no canonical
	// username. Defaults to DefaultUsername.
	DefaultUsername string

	// DefaultPassword is hashed when no credential material exists.
	// Empty generates a random password, returned once in Result.
	DefaultPassword string
}

// Result reports what EnsureCredential did.
type Result struct {
	Source   Source
	Username string

	// Persisted is true when at least one document was written.
	Persisted bool

	// GeneratedPassword is set only when a random password was created.
	// It is not stored anywhere else; show it to the operator once.
	GeneratedPassword string
}

// UpdateFunc runs a store transaction. Pass store.Store.Update, or
// auth.Manager.Mutate so that the authentication snapshot is rebuilt.
type UpdateFunc func(ctx context.Context, fn store.UpdateFunc) error

// Bootstrapper establishes the canonical admin credential.
type Bootstrapper struct {
	update UpdateFunc
	hasher credential.Hasher
	cfg    Config

	mu   sync.Mutex
	hash string
}

// New creates a Bootstrapper.
func New(update UpdateFunc, hasher credential.Hasher, cfg Config) *Bootstrapper {
	if cfg.DefaultUsername == "" {
		cfg.DefaultUsername = DefaultUsername
	}
	return &Bootstrapper{update: update, hasher: hasher, cfg: cfg}
}

// EnsureCredential makes sure the canonical admin has a hash, choosing the
// first of: the hash this process established earlier (if the document
// still carries it or carries none), the document's hash, the document's
// legacy plaintext, the default password. The chosen hash is mirrored
// into the canonical admin's registry record, which is created or forced
// to the admin role as needed.
//
// All writes happen in one store transaction. A persistence failure is
// returned and the in-memory hash is left unchanged.
func (b *Bootstrapper) EnsureCredential(ctx context.Context) (Result, error) {
	return b.run(ctx, false, nil)
}

// Reinitialize forgets the in-memory hash, applies prepare (which may be
// nil) and then bootstraps, all in a single transaction. Factory reset and
// credential repair use it so that no reader ever sees the documents
// without a credential.
func (b *Bootstrapper) Reinitialize(ctx context.Context, prepare store.UpdateFunc) (Result, error) {
	return b.run(ctx, true, prepare)
}

func (b *Bootstrapper) run(ctx context.Context, forget bool, prepare store.UpdateFunc) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, span := telemetry.StartInternalSpan(ctx, telemetry.SpanBootstrap)
	defer span.End()

	remembered := b.hash
	if forget {
		remembered = ""
	}

	var (
		res  Result
		hash string
	)
	err := b.update(ctx, func(docs *store.Documents) error {
		// The transaction may be retried; start from scratch each time.
		res = Result{}
		before := docs.Clone()

		if prepare != nil {
			if err := prepare(docs); err != nil {
				return err
			}
		}

		p := docs.Primary
		if p.DashboardUser == "" {
			p.DashboardUser = b.cfg.DefaultUsername
		}
		res.Username = p.DashboardUser

		var err error
		hash, res.Source, res.GeneratedPassword, err = b.choose(p, remembered)
		if err != nil {
			return err
		}

		mirror(docs.Registry, p.DashboardUser, hash,
			res.Source == SourcePlaintext || res.Source == SourceDefault)

		changes, err := store.Diff(before, docs)
		if err != nil {
			return err
		}
		res.Persisted = !changes.Empty()
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return Result{}, fmt.Errorf("bootstrap credential: %w", err)
	}

	b.hash = hash

	logger.InfoCtx(ctx, "Admin credential ensured",
		logger.Username(res.Username), logger.KeySource, string(res.Source), "persisted", res.Persisted)
	if res.GeneratedPassword != "" {
		logger.WarnCtx(ctx, "Generated a random admin password; it is shown once and not logged",
			logger.Username(res.Username))
	}
	return res, nil
}

// choose picks the hash for the canonical admin and updates p to carry it.
// Whatever tier wins, no plaintext is left next to the hash.
func (b *Bootstrapper) choose(p *models.PrimaryConfig, remembered string) (hash string, src Source, generated string, err error) {
	if p.DashboardPassHash != "" && !credential.IsHash(p.DashboardPassHash) {
		logger.Warn("Ignoring malformed admin password hash", logger.Username(p.DashboardUser))
		p.DashboardPassHash = ""
	}

	switch {
	case remembered != "" && (p.DashboardPassHash == remembered || (p.DashboardPassHash == "" && p.DashboardPass == "")):
		p.DashboardPassHash = remembered
		p.DashboardPass = ""
		return remembered, SourceMemory, "", nil

	case p.DashboardPassHash != "":
		p.DashboardPass = ""
		return p.DashboardPassHash, SourceHash, "", nil

	case p.DashboardPass != "":
		if len(p.DashboardPass) > credential.MaxPasswordLength {
			return "", "", "", fmt.Errorf("%w: %d bytes, at most %d are accepted; replace dashboard_pass with a shorter password",
				ErrLegacyPasswordTooLong, len(p.DashboardPass), credential.MaxPasswordLength)
		}
		hash, err = b.hasher.Hash(p.DashboardPass)
		if err != nil {
			return "", "", "", fmt.Errorf("hash legacy password: %w", err)
		}
		p.DashboardPassHash = hash
		p.DashboardPass = ""
		return hash, SourcePlaintext, "", nil

	default:
		secret := b.cfg.DefaultPassword
		if secret == "" {
			if secret, err = credential.GenerateRandomPassword(); err != nil {
				return "", "", "", fmt.Errorf("generate password: %w", err)
			}
			generated = secret
		}
		hash, err = b.hasher.Hash(secret)
		if err != nil {
			return "", "", "", fmt.Errorf("hash default password: %w", err)
		}
		p.DashboardPassHash = hash
		return hash, SourceDefault, generated, nil
	}
}

// mirror makes the canonical admin's registry record agree with the
// primary credential: present, role admin, and carrying hash. An existing
// record hash is only replaced when the credential comes from new secret
// material (plaintext or default).
func mirror(reg *models.UserRegistry, username, hash string, replace bool) {
	i := reg.Find(username)
	if i < 0 {
		reg.Users = append(reg.Users, models.UserRecord{
			Username:     username,
			Role:         models.RoleAdmin,
			PasswordHash: hash,
		})
		return
	}
	rec := &reg.Users[i]
	rec.Role = models.RoleAdmin
	if rec.PasswordHash == "" || replace {
		rec.PasswordHash = hash
	}
}

// Reset forgets the hash established by this process. Call it after a
// factory reset or an imported configuration.
func (b *Bootstrapper) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hash = ""
}

// Remember records hash as the canonical admin's current credential. Call it
// after committing a new primary hash outside EnsureCredential, so that a
// later run never writes back a superseded one.
func (b *Bootstrapper) Remember(hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hash = hash
}

var (
	// ErrNoCredential is returned by Check when the canonical admin has no
	// usable hash.
	ErrNoCredential = errors.New("canonical admin has no password hash")

	// ErrLegacyPasswordTooLong is returned when a plaintext dashboard_pass
	// exceeds what bcrypt can hash. Bootstrap refuses to truncate it.
	ErrLegacyPasswordTooLong = errors.New("legacy plaintext password too long")
)

// Check reports whether the documents already satisfy the bootstrap
// postconditions, without writing. Readiness uses it.
func Check(docs *store.Documents) error {
	p := docs.Primary
	if p == nil || p.DashboardUser == "" || !credential.IsHash(p.DashboardPassHash) {
		return ErrNoCredential
	}
	if p.DashboardPass != "" {
		return fmt.Errorf("legacy plaintext password still present for %s", p.DashboardUser)
	}
	rec, ok := docs.Registry.Lookup(p.DashboardUser)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUserNotFound, p.DashboardUser)
	}
	if rec.Role != models.RoleAdmin {
		return fmt.Errorf("%w: %s has role %q", models.ErrInvalidRole, p.DashboardUser, rec.Role)
	}
	return nil
}
