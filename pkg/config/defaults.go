package config

import (
	"strings"
	"time"

	"github.com/marmos91/warden/internal/telemetry"
	"github.com/marmos91/warden/pkg/api"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/bootstrap"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/models"
	sqlstore "github.com/marmos91/warden/pkg/store/sql"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyBootstrapDefaults(&cfg.Bootstrap)
	applyAuthDefaults(&cfg.Auth)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	def := telemetry.DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = telemetry.DefaultProfileTypes()
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyServerDefaults(cfg *api.APIConfig) {
	cfg.ApplyDefaults()
}

// applyStoreDefaults defaults to the file backend next to the config file.
// The database type always follows the store type.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = StoreTypeFile
	}
	cfg.File.ApplyDefaults(getConfigDir())

	switch cfg.Type {
	case StoreTypeSQLite:
		cfg.Database.Type = sqlstore.DatabaseTypeSQLite
	case StoreTypePostgres:
		cfg.Database.Type = sqlstore.DatabaseTypePostgres
	}
	if cfg.Database.Type != "" {
		cfg.Database.ApplyDefaults()
	}
}

func applyBootstrapDefaults(cfg *BootstrapConfig) {
	if cfg.DefaultUsername == "" {
		cfg.DefaultUsername = bootstrap.DefaultUsername
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = credential.DefaultBcryptCost
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.DirectoryTimeout == 0 {
		cfg.DirectoryTimeout = auth.DefaultTimeout
	}
	if cfg.HostTimeout == 0 {
		cfg.HostTimeout = auth.DefaultTimeout
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = models.RoleViewer
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Seeding viper so environment overrides work without a file
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
