// Package accounts implements the credential-changing operations: password
// changes, authentication method changes, user and role management, repair
// and factory reset.
//
// Every operation is a single store transaction run through
// auth.Manager.Mutate, so the authentication snapshot is rebuilt before the
// operation returns and the next request observes the change.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/bootstrap"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

var (
	// ErrCanonicalAdminRole is returned when assigning the canonical admin
	// any role other than admin.
	ErrCanonicalAdminRole = errors.New("the canonical admin must keep the admin role")

	// ErrCannotDeleteCanonical is returned when deleting the canonical admin.
	ErrCannotDeleteCanonical = errors.New("the canonical admin cannot be deleted")

	// ErrProtectedRole is returned when editing or deleting the admin role.
	ErrProtectedRole = errors.New("the admin role cannot be changed")
)

// rolePattern defines valid role names: lowercase letters, digits,
// underscores and hyphens, 1-64 characters.
var rolePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// UserSummary describes a registry record without its hash.
type UserSummary struct {
	Username    string `json:"username" yaml:"username"`
	Role        string `json:"role" yaml:"role"`
	HasPassword bool   `json:"has_password" yaml:"has_password"`
	Canonical   bool   `json:"canonical" yaml:"canonical"`
}

// Service performs credential-changing operations.
type Service struct {
	mgr    *auth.Manager
	store  store.Store
	boot   *bootstrap.Bootstrapper
	hasher credential.Hasher
}

// New creates a Service. boot must have been created with mgr.Mutate as its
// update function.
func New(mgr *auth.Manager, st store.Store, boot *bootstrap.Bootstrapper) *Service {
	return &Service{
		mgr:    mgr,
		store:  st,
		boot:   boot,
		hasher: mgr.Hasher(),
	}
}

// NewBootstrapper returns a Bootstrapper wired to mgr, for use with New.
func NewBootstrapper(mgr *auth.Manager, cfg bootstrap.Config) *bootstrap.Bootstrapper {
	return bootstrap.New(mgr.Mutate, mgr.Hasher(), cfg)
}

// EnsureCredential runs the bootstrap procedure.
func (s *Service) EnsureCredential(ctx context.Context) (bootstrap.Result, error) {
	return s.boot.EnsureCredential(ctx)
}

// Reload rebuilds after the documents were edited outside this process, and
// re-runs bootstrap so that a removed hash or a new plaintext is handled.
func (s *Service) Reload(ctx context.Context) error {
	if _, err := s.boot.EnsureCredential(ctx); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Credential documents reloaded")
	return nil
}

// CheckCredentials reports whether the stored documents hold a usable
// canonical admin credential, mirrored with the admin role.
func (s *Service) CheckCredentials(ctx context.Context) error {
	docs, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("check credentials: %w", err)
	}
	if err := bootstrap.Check(docs); err != nil {
		return fmt.Errorf("check credentials: %w", err)
	}
	return nil
}

// ChangePassword sets a new password for username. For the canonical admin
// both the primary credential and the mirrored registry hash change.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) error {
	if err := credential.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var canonical bool
	err = s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		canonical = docs.Primary.Credential().IsCanonical(username)
		i := docs.Registry.Find(username)

		if canonical {
			docs.Primary.DashboardPassHash = hash
			docs.Primary.DashboardPass = ""
			if i >= 0 {
				docs.Registry.Users[i].PasswordHash = hash
			}
			return nil
		}
		if i < 0 {
			return fmt.Errorf("%w: %s", models.ErrUserNotFound, username)
		}
		docs.Registry.Users[i].PasswordHash = hash
		return nil
	})
	if err != nil {
		return fmt.Errorf("change password for %s: %w", username, err)
	}
	if canonical {
		s.boot.Remember(hash)
	}

	logger.InfoCtx(ctx, "Password changed", logger.Username(username))
	return nil
}

// SetAuthConfig validates and persists the authentication settings.
func (s *Service) SetAuthConfig(ctx context.Context, cfg models.AuthConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Normalized()

	err := s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		docs.Primary.SetAuthConfig(cfg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set auth config: %w", err)
	}

	logger.InfoCtx(ctx, "Authentication method changed",
		logger.AuthMethod(cfg.PrimaryMethod.String()), "fallback", cfg.FallbackEnabled)
	return nil
}

// CreateUser adds a registry record. password may be empty for users that
// authenticate against the directory or the host.
func (s *Service) CreateUser(ctx context.Context, username, role, password string) error {
	if !models.IsValidUsername(username) {
		return fmt.Errorf("%w: %q", models.ErrInvalidUser, username)
	}

	var hash string
	if password != "" {
		if err := credential.ValidatePassword(password); err != nil {
			return err
		}
		var err error
		if hash, err = s.hasher.Hash(password); err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
	}

	err := s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		if docs.Registry.Find(username) >= 0 {
			return fmt.Errorf("%w: %s", models.ErrDuplicateUser, username)
		}
		if err := checkRole(docs, username, role); err != nil {
			return err
		}
		docs.Registry.Users = append(docs.Registry.Users, models.UserRecord{
			Username:     username,
			Role:         role,
			PasswordHash: hash,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("create user %s: %w", username, err)
	}

	logger.InfoCtx(ctx, "User created", logger.Username(username), logger.Role(role))
	return nil
}

// DeleteUser removes every registry record for username.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	err := s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		if docs.Primary.Credential().IsCanonical(username) {
			return ErrCannotDeleteCanonical
		}
		n := len(docs.Registry.Users)
		docs.Registry.Users = slices.DeleteFunc(docs.Registry.Users, func(u models.UserRecord) bool {
			return u.Username == username
		})
		if len(docs.Registry.Users) == n {
			return fmt.Errorf("%w: %s", models.ErrUserNotFound, username)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", username, err)
	}

	logger.InfoCtx(ctx, "User deleted", logger.Username(username))
	return nil
}

// AssignRole sets the role of username's record.
func (s *Service) AssignRole(ctx context.Context, username, role string) error {
	err := s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		i := docs.Registry.Find(username)
		if i < 0 {
			return fmt.Errorf("%w: %s", models.ErrUserNotFound, username)
		}
		if err := checkRole(docs, username, role); err != nil {
			return err
		}
		docs.Registry.Users[i].Role = role
		return nil
	})
	if err != nil {
		return fmt.Errorf("assign role to %s: %w", username, err)
	}

	logger.InfoCtx(ctx, "Role assigned", logger.Username(username), logger.Role(role))
	return nil
}

// checkRole rejects unknown roles and a non-admin role for the canonical admin.
func checkRole(docs *store.Documents, username, role string) error {
	if _, ok := docs.Registry.RoleTable()[role]; !ok {
		return fmt.Errorf("%w: %s", models.ErrRoleNotFound, role)
	}
	if docs.Primary.Credential().IsCanonical(username) && role != models.RoleAdmin {
		return ErrCanonicalAdminRole
	}
	return nil
}

// ListUsers returns every registry record, in registry order.
func (s *Service) ListUsers(ctx context.Context) ([]UserSummary, error) {
	docs, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	cred := docs.Primary.Credential()

	out := make([]UserSummary, 0, len(docs.Registry.Users))
	for _, u := range docs.Registry.Users {
		out = append(out, UserSummary{
			Username:    u.Username,
			Role:        u.Role,
			HasPassword: u.PasswordHash != "" || (cred.IsCanonical(u.Username) && cred.PasswordHash != ""),
			Canonical:   cred.IsCanonical(u.Username),
		})
	}
	return out, nil
}

// PutRole creates or replaces a role. Rights not named are denied.
func (s *Service) PutRole(ctx context.Context, name string, grants map[string]bool) error {
	if !rolePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", models.ErrInvalidRole, name)
	}
	if name == models.RoleAdmin {
		return ErrProtectedRole
	}
	table := make(models.RoleRights, len(models.KnownRights()))
	for _, right := range models.KnownRights() {
		table[right] = false
	}
	for right, granted := range grants {
		if !models.IsKnownRight(right) {
			return fmt.Errorf("%w: unknown right %q", models.ErrInvalidRole, right)
		}
		table[right] = granted
	}

	err := s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		docs.Registry.EnsureRoles()
		docs.Registry.Roles[name] = table
		return nil
	})
	if err != nil {
		return fmt.Errorf("put role %s: %w", name, err)
	}

	logger.InfoCtx(ctx, "Role saved", logger.Role(name))
	return nil
}

// DeleteRole removes a role. Users still assigned to it keep the name and
// are denied every right until reassigned.
func (s *Service) DeleteRole(ctx context.Context, name string) error {
	if name == models.RoleAdmin {
		return ErrProtectedRole
	}

	var orphaned int
	err := s.mgr.Mutate(ctx, func(docs *store.Documents) error {
		if _, ok := docs.Registry.RoleTable()[name]; !ok {
			return fmt.Errorf("%w: %s", models.ErrRoleNotFound, name)
		}
		docs.Registry.EnsureRoles()
		delete(docs.Registry.Roles, name)

		orphaned = 0
		for _, u := range docs.Registry.Users {
			if u.Role == name {
				orphaned++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete role %s: %w", name, err)
	}

	if orphaned > 0 {
		logger.WarnCtx(ctx, "Deleted role still assigned; those users are denied all rights",
			logger.Role(name), "users", orphaned)
	} else {
		logger.InfoCtx(ctx, "Role deleted", logger.Role(name))
	}
	return nil
}

// ListRoles returns a copy of the effective role table.
func (s *Service) ListRoles(ctx context.Context) (map[string]models.RoleRights, error) {
	reg, err := s.store.LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make(map[string]models.RoleRights, len(reg.RoleTable()))
	for name, rights := range reg.RoleTable() {
		out[name] = rights.Clone()
	}
	return out, nil
}

// RoleNames returns the role names in sorted order.
func RoleNames(roles map[string]models.RoleRights) []string {
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RepairCredentials forgets the in-memory hash and re-runs bootstrap, which
// also forces the canonical admin's record back to the admin role.
func (s *Service) RepairCredentials(ctx context.Context) (bootstrap.Result, error) {
	res, err := s.boot.Reinitialize(ctx, nil)
	if err != nil {
		return bootstrap.Result{}, fmt.Errorf("repair credentials: %w", err)
	}
	logger.InfoCtx(ctx, "Credentials repaired", logger.Username(res.Username), logger.KeySource, string(res.Source))
	return res, nil
}

// FactoryReset clears the credential fields, the authentication settings,
// every user and every role, then bootstraps afresh in the same
// transaction. Fields of the primary document owned by other consumers are
// kept.
func (s *Service) FactoryReset(ctx context.Context) (bootstrap.Result, error) {
	res, err := s.boot.Reinitialize(ctx, func(docs *store.Documents) error {
		docs.Primary.DashboardUser = ""
		docs.Primary.DashboardPassHash = ""
		docs.Primary.DashboardPass = ""
		docs.Primary.SetAuthConfig(models.AuthConfig{})
		docs.Registry.Users = []models.UserRecord{}
		docs.Registry.Roles = nil
		return nil
	})
	if err != nil {
		return bootstrap.Result{}, fmt.Errorf("factory reset: %w", err)
	}
	logger.WarnCtx(ctx, "Factory reset completed", logger.Username(res.Username))
	return res, nil
}

// AuthConfig returns the active authentication settings.
func (s *Service) AuthConfig() models.AuthConfig {
	return s.mgr.Config()
}
