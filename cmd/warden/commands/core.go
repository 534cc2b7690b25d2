package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/bootstrap"
	"github.com/marmos91/warden/pkg/config"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/rights"
)

// core is the access control core assembled from configuration.
type core struct {
	backend  *config.Backend
	manager  *auth.Manager
	accounts *accounts.Service
	resolver *rights.Resolver
}

// openCore opens the document store and builds the manager, the accounts
// service and the rights resolver over it. metricsResult may be nil.
func openCore(ctx context.Context, cfg *config.Config, metricsResult *config.MetricsResult) (*core, error) {
	if metricsResult == nil {
		metricsResult = &config.MetricsResult{}
	}

	backend, err := config.OpenStore(&cfg.Store, metricsResult.Store)
	if err != nil {
		return nil, err
	}

	mgr, err := auth.NewManager(ctx, backend.Store, auth.Options{
		Hasher:           credential.NewBcryptHasher(cfg.Bootstrap.BcryptCost),
		DirectoryTimeout: cfg.Auth.DirectoryTimeout,
		HostTimeout:      cfg.Auth.HostTimeout,
		Krb5Conf:         cfg.Auth.Krb5Conf,
		Metrics:          metricsResult.Auth,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create auth manager: %w", err)
	}

	boot := accounts.NewBootstrapper(mgr, bootstrap.Config{
		DefaultUsername: cfg.Bootstrap.DefaultUsername,
		DefaultPassword: cfg.Bootstrap.DefaultPassword,
	})

	return &core{
		backend:  backend,
		manager:  mgr,
		accounts: accounts.New(mgr, backend.Store, boot),
		resolver: rights.NewResolver(backend.Store, mgr, rights.WithDefaultRole(cfg.Auth.DefaultRole)),
	}, nil
}

// openOfflineCore loads configuration and opens the core for a one-shot
// command. The caller must Close it.
func openOfflineCore(ctx context.Context) (*core, error) {
	cfg, err := loadOffline()
	if err != nil {
		return nil, err
	}
	return openCore(ctx, cfg, nil)
}

func (c *core) Close() error {
	return c.backend.Close()
}

// ready backs GET /health/ready: the store answers and still carries a
// usable admin credential.
func (c *core) ready(ctx context.Context) error {
	if err := c.backend.Healthcheck(ctx); err != nil {
		return err
	}
	return c.accounts.CheckCredentials(ctx)
}
