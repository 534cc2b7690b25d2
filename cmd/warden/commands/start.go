package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/internal/telemetry"
	"github.com/marmos91/warden/pkg/api"
	"github.com/marmos91/warden/pkg/config"
	"github.com/marmos91/warden/pkg/store/file"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Warden server",
	Long: `Start the Warden admin API.

On startup the canonical admin credential is bootstrapped. If no password
exists anywhere, WARDEN_BOOTSTRAP_DEFAULT_PASSWORD is used, or a random one
is generated and printed once.

Examples:
  # Start with default config location
  warden start

  # Start with custom config
  warden start --config /etc/warden/config.yaml

  # Override settings with environment variables
  WARDEN_LOGGING_LEVEL=DEBUG warden start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "warden",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "warden",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", logger.KeySource, getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	// Metrics first, so the store and the manager receive live collectors.
	metricsResult := config.InitializeMetrics(cfg)

	c, err := openCore(ctx, cfg, metricsResult)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Store close error", logger.Err(err))
		}
	}()

	res, err := c.accounts.EnsureCredential(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin credential: %w", err)
	}
	if res.GeneratedPassword != "" {
		printBootstrap(cmd.OutOrStdout(), res)
	}

	authCfg := c.manager.Config()
	logger.Info("Authentication configured",
		logger.AuthMethod(string(authCfg.PrimaryMethod)),
		"fallback", authCfg.FallbackEnabled,
		"available", c.manager.AvailableMethods())

	errCh := make(chan error, 3)
	running := 0

	if c.backend.File != nil && cfg.Store.File.Watch {
		running++
		go func() {
			errCh <- c.backend.File.Watch(ctx, file.DefaultWatchDebounce, func() {
				if err := c.accounts.Reload(ctx); err != nil {
					logger.Error("Failed to reload credential documents", logger.Err(err))
				}
			})
		}()
	}

	if metricsResult.Server != nil {
		running++
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			errCh <- serveMetrics(ctx, metricsResult.Server, cfg.ShutdownTimeout)
		}()
	} else if metricsResult.Handler != nil {
		logger.Info("Metrics enabled", logger.KeyPath, "/metrics", "port", cfg.Server.Port)
	}

	if cfg.Server.IsEnabled() {
		running++
		server := api.NewServer(cfg.Server, api.Dependencies{
			Manager:        c.manager,
			Resolver:       c.resolver,
			Accounts:       c.accounts,
			Health:         c.ready,
			Metrics:        metricsResult.API,
			MetricsHandler: metricsHandlerForAPI(metricsResult),
		})
		go func() {
			errCh <- server.Start(ctx)
		}()
	} else {
		logger.Info("API server disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Warden is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		running--
		if err != nil {
			logger.Error("Component failed", logger.Err(err))
			cancel()
			waitComponents(errCh, running, cfg.ShutdownTimeout)
			return err
		}
	}

	cancel()
	waitComponents(errCh, running, cfg.ShutdownTimeout)
	logger.Info("Warden stopped")
	return nil
}

// metricsHandlerForAPI returns the /metrics handler when it is served on the
// API port rather than a dedicated listener.
func metricsHandlerForAPI(m *config.MetricsResult) http.Handler {
	if m.Server != nil {
		return nil
	}
	return m.Handler
}

func serveMetrics(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// waitComponents drains the results of the components still running, up to
// timeout.
func waitComponents(errCh <-chan error, running int, timeout time.Duration) {
	deadline := time.After(timeout)
	for ; running > 0; running-- {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("Shutdown error", logger.Err(err))
			}
		case <-deadline:
			logger.Warn("Shutdown timeout exceeded", "pending", running)
			return
		}
	}
}
