package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LevelNormalized(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "warn"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level normalized to 'WARN', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Expected default write timeout 30s, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.Server.IdleTimeout)
	}
	if cfg.Server.Realm != "warden" {
		t.Errorf("Expected default realm 'warden', got %q", cfg.Server.Realm)
	}
	if !cfg.Server.IsEnabled() {
		t.Error("Expected server enabled by default")
	}
}

func TestApplyDefaults_Store(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Type != StoreTypeFile {
		t.Errorf("Expected default store type 'file', got %q", cfg.Store.Type)
	}
	if filepath.Base(cfg.Store.File.PrimaryPath) != "config.json" {
		t.Errorf("Expected primary document 'config.json', got %q", cfg.Store.File.PrimaryPath)
	}
	if filepath.Base(cfg.Store.File.RegistryPath) != "users.json" {
		t.Errorf("Expected registry document 'users.json', got %q", cfg.Store.File.RegistryPath)
	}
	if filepath.Dir(cfg.Store.File.PrimaryPath) != GetConfigDir() {
		t.Errorf("Expected documents next to the config file, got %q", cfg.Store.File.PrimaryPath)
	}
	if cfg.Store.Database.Type != "" {
		t.Errorf("Expected no database for the file store, got %q", cfg.Store.Database.Type)
	}
}

func TestApplyDefaults_PostgresStore(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Type: StoreTypePostgres}}
	ApplyDefaults(cfg)

	if cfg.Store.Database.Type != "postgres" {
		t.Errorf("Expected database type 'postgres', got %q", cfg.Store.Database.Type)
	}
	if cfg.Store.Database.Postgres.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Store.Database.Postgres.Port)
	}
}

func TestApplyDefaults_BootstrapAndAuth(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Bootstrap.DefaultUsername != "admin" {
		t.Errorf("Expected default admin username 'admin', got %q", cfg.Bootstrap.DefaultUsername)
	}
	if cfg.Bootstrap.BcryptCost != 10 {
		t.Errorf("Expected default bcrypt cost 10, got %d", cfg.Bootstrap.BcryptCost)
	}
	if cfg.Bootstrap.DefaultPassword != "" {
		t.Error("Expected no default password")
	}
	if cfg.Auth.DirectoryTimeout != 10*time.Second || cfg.Auth.HostTimeout != 10*time.Second {
		t.Errorf("Expected 10s auth timeouts, got %v/%v", cfg.Auth.DirectoryTimeout, cfg.Auth.HostTimeout)
	}
	if cfg.Auth.DefaultRole != "viewer" {
		t.Errorf("Expected default role 'viewer', got %q", cfg.Auth.DefaultRole)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/warden.log",
		},
		ShutdownTimeout: 5 * time.Second,
		Bootstrap: BootstrapConfig{
			DefaultUsername: "root",
			BcryptCost:      12,
		},
		Auth: AuthConfig{
			HostTimeout: time.Second,
			DefaultRole: "operator",
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/warden.log" {
		t.Errorf("Expected explicit output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected explicit shutdown timeout 5s preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Bootstrap.DefaultUsername != "root" {
		t.Errorf("Expected explicit username preserved, got %q", cfg.Bootstrap.DefaultUsername)
	}
	if cfg.Bootstrap.BcryptCost != 12 {
		t.Errorf("Expected explicit bcrypt cost preserved, got %d", cfg.Bootstrap.BcryptCost)
	}
	if cfg.Auth.HostTimeout != time.Second {
		t.Errorf("Expected explicit host timeout preserved, got %v", cfg.Auth.HostTimeout)
	}
	if cfg.Auth.DefaultRole != "operator" {
		t.Errorf("Expected explicit default role preserved, got %q", cfg.Auth.DefaultRole)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected the default config to validate, got: %v", err)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default telemetry endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		t.Error("Expected default profile types")
	}
}
