package auth

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/internal/telemetry"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/metrics"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

// Options configures a Manager.
type Options struct {
	// Hasher verifies local hashes. Defaults to bcrypt at the default cost.
	Hasher credential.Hasher

	// DirectoryTimeout and HostTimeout bound a single attempt against the
	// directory or the host. Zero selects DefaultTimeout.
	DirectoryTimeout time.Duration
	HostTimeout      time.Duration

	// Krb5Conf is the krb5.conf used by the non-Windows host backend.
	// Empty selects the environment or the system default.
	Krb5Conf string

	// HostLogon replaces the platform host backend.
	HostLogon HostLogon

	// DirectoryOptions are passed to every DirectoryProvider built.
	DirectoryOptions []DirectoryOption

	// Metrics receives attempt and rebuild events. May be nil.
	Metrics metrics.AuthMetrics
}

// Result describes how an authentication decision was reached.
type Result struct {
	OK bool

	// Method is the provider whose answer is final.
	Method models.Method

	// Fallback is true when the local provider answered in place of the
	// configured primary method.
	Fallback bool

	// Unavailable is true when the primary provider could not be used.
	Unavailable bool
}

func (r Result) label() string {
	switch {
	case r.OK:
		return metrics.ResultSuccess
	case r.Unavailable && !r.Fallback:
		return metrics.ResultUnavailable
	default:
		return metrics.ResultFailure
	}
}

// snapshot is the immutable state an authentication attempt runs against.
type snapshot struct {
	config     models.AuthConfig
	credential models.PrimaryCredential
	providers  map[models.Method]Provider
}

func (s *snapshot) authenticate(ctx context.Context, username, password string) Result {
	primary := s.config.PrimaryMethod

	p, ok := s.providers[primary]
	available := ok && p.IsAvailable()
	if available && p.Authenticate(ctx, username, password) {
		return Result{OK: true, Method: primary}
	}

	if s.config.FallbackEnabled && primary != models.MethodLocal {
		local := s.providers[models.MethodLocal]
		return Result{
			OK:          local.Authenticate(ctx, username, password),
			Method:      models.MethodLocal,
			Fallback:    true,
			Unavailable: !available,
		}
	}

	return Result{Method: primary, Unavailable: !available}
}

// Manager selects the authentication provider for every request.
//
// The active configuration lives in an immutable snapshot published through
// an atomic pointer. Readers never lock; Rebuild and Mutate build a complete
// new snapshot under the manager mutex and swap it in, so a request observes
// either the old or the new configuration, never a mix.
type Manager struct {
	store store.Store
	opts  Options

	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewManager creates a manager and builds its first snapshot from st.
func NewManager(ctx context.Context, st store.Store, opts Options) (*Manager, error) {
	if opts.Hasher == nil {
		opts.Hasher = credential.NewBcryptHasher(credential.DefaultBcryptCost)
	}
	m := &Manager{store: st, opts: opts}
	if err := m.Rebuild(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Authenticate reports whether password is valid for username under the
// current configuration.
func (m *Manager) Authenticate(ctx context.Context, username, password string) bool {
	return m.Attempt(ctx, username, password).OK
}

// Attempt authenticates and reports which provider decided.
//
// The primary provider is tried first when it is available. When it refuses
// or is unavailable, the local provider decides alone if fallback is enabled
// and the primary is not local; otherwise the attempt fails.
func (m *Manager) Attempt(ctx context.Context, username, password string) Result {
	start := time.Now()
	snap := m.current.Load()

	ctx, span := telemetry.StartAuthSpan(ctx, telemetry.SpanAuthenticate, username,
		telemetry.AuthPrimary(snap.config.PrimaryMethod.String()))
	defer span.End()

	res := snap.authenticate(ctx, username, password)

	span.SetAttributes(
		telemetry.AuthMethod(res.Method.String()),
		telemetry.AuthResult(res.label()),
		telemetry.AuthFallback(res.Fallback),
	)
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordAttempt(res.Method.String(), res.label(), res.Fallback, time.Since(start))
	}

	if res.OK {
		logger.DebugCtx(ctx, "Authentication succeeded",
			logger.Username(username), logger.AuthMethod(res.Method.String()), logger.KeyFallback, res.Fallback)
	} else {
		logger.InfoCtx(ctx, "Authentication failed",
			logger.Username(username), logger.AuthMethod(res.Method.String()), logger.KeyResult, res.label(),
			logger.KeyFallback, res.Fallback, "primary_unavailable", res.Unavailable)
	}
	return res
}

// AvailableMethods lists the methods whose provider is currently usable.
// For display and diagnostics only; it plays no part in Authenticate.
func (m *Manager) AvailableMethods() []models.Method {
	snap := m.current.Load()
	var out []models.Method
	for _, method := range models.AllMethods() {
		if p, ok := snap.providers[method]; ok && p.IsAvailable() {
			out = append(out, method)
		}
	}
	return out
}

// Config returns a copy of the active authentication configuration.
func (m *Manager) Config() models.AuthConfig {
	cfg := m.current.Load().config
	cfg.Directory.AllowedGroups = slices.Clone(cfg.Directory.AllowedGroups)
	cfg.Host.AllowedGroups = slices.Clone(cfg.Host.AllowedGroups)
	return cfg
}

// PrimaryCredential returns the primary credential captured by the active
// snapshot.
func (m *Manager) PrimaryCredential() models.PrimaryCredential {
	return m.current.Load().credential
}

// Hasher returns the hasher used by the local provider.
func (m *Manager) Hasher() credential.Hasher {
	return m.opts.Hasher
}

// Rebuild re-reads the primary document and publishes a new snapshot.
// On error the previous snapshot stays active.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuildLocked(ctx)
}

// Mutate runs fn as a store transaction and rebuilds the snapshot before
// returning, both under the manager mutex. Every write that touches the
// authentication configuration or the primary credential goes through here,
// so the next request observes the change.
//
// The snapshot is rebuilt even when the transaction fails: a partial commit
// may have changed one of the documents. The transaction error wins.
func (m *Manager) Mutate(ctx context.Context, fn store.UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := telemetry.StartInternalSpan(ctx, telemetry.SpanAuthMutate)
	defer span.End()

	err := m.store.Update(ctx, fn)
	rbErr := m.rebuildLocked(ctx)

	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if rbErr != nil {
		telemetry.RecordError(ctx, rbErr)
	}
	return rbErr
}

func (m *Manager) rebuildLocked(ctx context.Context) error {
	ctx, span := telemetry.StartInternalSpan(ctx, telemetry.SpanAuthRebuild)
	defer span.End()

	primary, err := m.store.LoadPrimary(ctx)
	if err != nil {
		err = fmt.Errorf("auth: rebuild: %w", err)
		span.SetStatus(codes.Error, err.Error())
		if m.opts.Metrics != nil {
			m.opts.Metrics.RecordRebuild(err)
		}
		logger.ErrorCtx(ctx, "Failed to rebuild authentication state", logger.Err(err))
		return err
	}

	snap := m.build(primary.AuthConfig(), primary.Credential())
	m.current.Store(snap)

	if _, ok := snap.providers[snap.config.PrimaryMethod]; !ok {
		logger.WarnCtx(ctx, "Primary authentication method has no provider",
			logger.AuthMethod(snap.config.PrimaryMethod.String()),
			"fallback", snap.config.FallbackEnabled)
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordRebuild(nil)
		m.opts.Metrics.SetPrimaryMethod(snap.config.PrimaryMethod.String())
	}
	span.SetAttributes(telemetry.AuthPrimary(snap.config.PrimaryMethod.String()))
	logger.DebugCtx(ctx, "Authentication state rebuilt",
		logger.AuthMethod(snap.config.PrimaryMethod.String()),
		"fallback", snap.config.FallbackEnabled,
		"canonical_user", snap.credential.CanonicalUsername)
	return nil
}

func (m *Manager) build(cfg models.AuthConfig, cred models.PrimaryCredential) *snapshot {
	hostLogon := m.opts.HostLogon
	if hostLogon == nil {
		hostLogon = PlatformHostLogon(m.opts.Krb5Conf)
	}

	return &snapshot{
		config:     cfg,
		credential: cred,
		providers: map[models.Method]Provider{
			models.MethodLocal:     NewLocalProvider(cred, m.store, m.opts.Hasher),
			models.MethodDirectory: NewDirectoryProvider(cfg.Directory, m.opts.DirectoryTimeout, m.opts.DirectoryOptions...),
			models.MethodHost:      NewHostProvider(cfg.Host, m.opts.HostTimeout, hostLogon),
		},
	}
}
