package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/warden/pkg/api"
	"github.com/marmos91/warden/pkg/store/file"
	sqlstore "github.com/marmos91/warden/pkg/store/sql"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "WARDEN"

// Store backend types.
const (
	StoreTypeFile     = "file"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
)

// Config represents the Warden configuration.
//
// This structure captures the static configuration of the process:
//   - Logging, tracing, profiling and metrics
//   - The admin HTTP server
//   - Where the two credential documents live
//   - Bootstrap defaults for the canonical admin
//   - Authentication provider timeouts and the default role
//
// The authentication method itself, users and roles are not configured
// here: they live in the credential documents and are changed through the
// CLI or the API.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (WARDEN_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds the drain of the API server and the flush of
	// telemetry exporters on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Server    api.APIConfig   `mapstructure:"server" yaml:"server"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`

	// Auth holds provider settings that are not part of the persisted
	// authentication configuration.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// LoggingConfig mirrors logger.Config. Level is upper-cased by ApplyDefaults.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr or a file path opened in append mode.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig configures span export over OTLP/gRPC. Tracing is off
// unless Enabled is set; the endpoint defaults to localhost:4317.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig configures the Pyroscope agent.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL, http://localhost:4040 by default.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes uses telemetry.DefaultProfileTypes when empty.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics. Disabled metrics leave every
// collector nil.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port serves /metrics on a dedicated listener. Zero mounts /metrics on
	// the API server instead.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StoreConfig selects the credential document backend.
type StoreConfig struct {
	// Type is one of file, sqlite or postgres.
	// Default: file
	Type string `mapstructure:"type" validate:"required,oneof=file sqlite postgres" yaml:"type"`

	// File configures the JSON file backend
	File file.Config `mapstructure:"file" yaml:"file"`

	// Database configures the sqlite and postgres backends. Its type is
	// taken from Type.
	Database sqlstore.Config `mapstructure:"database" yaml:"database"`
}

// BootstrapConfig contains the canonical admin defaults used when the
// documents carry no credential at all.
type BootstrapConfig struct {
	// DefaultUsername is the canonical admin username.
	// Default: "admin"
	DefaultUsername string `mapstructure:"default_username" yaml:"default_username"`

	// DefaultPassword is hashed when no credential exists. Empty generates
	// a random password that is printed once.
	// Override: WARDEN_BOOTSTRAP_DEFAULT_PASSWORD
	DefaultPassword string `mapstructure:"default_password" yaml:"default_password,omitempty"`

	// BcryptCost is the bcrypt work factor for new hashes.
	// Default: 10
	BcryptCost int `mapstructure:"bcrypt_cost" validate:"omitempty,min=4,max=31" yaml:"bcrypt_cost"`
}

// AuthConfig contains process-level authentication settings.
type AuthConfig struct {
	// DirectoryTimeout bounds one directory authentication attempt.
	// Default: 10s
	DirectoryTimeout time.Duration `mapstructure:"directory_timeout" yaml:"directory_timeout"`

	// HostTimeout bounds one host logon attempt.
	// Default: 10s
	HostTimeout time.Duration `mapstructure:"host_timeout" yaml:"host_timeout"`

	// DefaultRole is assigned to authenticated users without a registry record.
	// Default: "viewer"
	DefaultRole string `mapstructure:"default_role" validate:"required" yaml:"default_role"`

	// Krb5Conf is the krb5.conf used for host logon on non-Windows systems.
	// Empty uses KRB5_CONFIG or /etc/krb5.conf.
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf,omitempty"`
}

// Load layers WARDEN_* environment variables over the file at configPath
// over defaults, then validates. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load for commands that cannot run without a config file. The
// error tells the operator how to create one.
func MustLoad(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		hint := "warden init"
		if explicit {
			hint = "warden init --config " + configPath
		}
		return nil, fmt.Errorf("no configuration at %s\n\nCreate one with:\n  %s", configPath, hint)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration if a file exists and falls back to
// defaults plus environment otherwise. Offline CLI commands use it so they
// work before `warden init`.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" && DefaultConfigExists() {
		configPath = GetDefaultConfigPath()
	}
	return Load(configPath)
}

// SaveConfig writes cfg as YAML. The file is private to the owner since it
// may hold the bootstrap and database passwords.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// setupViper configures viper with defaults, environment variables and
// config file settings.
//
// Defaults are loaded as a config layer so that every key is known to viper
// and AutomaticEnv can override it even when no file is present.
func setupViper(v *viper.Viper, configPath string) error {
	defaults, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return fmt.Errorf("failed to load default config: %w", err)
	}

	// Example: WARDEN_LOGGING_LEVEL=DEBUG, WARDEN_STORE_DATABASE_POSTGRES_HOST=db
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys omitted from the default YAML still need an env binding.
	for _, key := range []string{
		"bootstrap.default_password",
		"auth.krb5_conf",
		"server.enabled",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
	}
	return nil
}

// readConfigFile merges the configuration file over the defaults and
// reports whether one was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationHook,
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationHook accepts "30s"-style strings and bare numbers of nanoseconds.
// YAML and env values reach it as string, int or float64.
func durationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeFor[time.Duration]() {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	case float64:
		return time.Duration(v), nil
	}
	return data, nil
}

// getConfigDir is $XDG_CONFIG_HOME/warden, ~/.config/warden, or "." when
// neither can be resolved.
func getConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "warden")
}

// GetDefaultConfigPath returns <config dir>/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the config directory to the init command.
func GetConfigDir() string {
	return getConfigDir()
}
