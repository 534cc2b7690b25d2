package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/warden/internal/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Telemetry.Profiling.Enabled {
		if err := telemetry.ValidateProfileTypes(cfg.Telemetry.Profiling.ProfileTypes); err != nil {
			return fmt.Errorf("telemetry.profiling.profile_types: %w", err)
		}
	}

	if cfg.Store.Type != StoreTypeFile {
		if err := cfg.Store.Database.Validate(); err != nil {
			return fmt.Errorf("store.database: %w", err)
		}
	}

	if cfg.Auth.DirectoryTimeout < 0 || cfg.Auth.HostTimeout < 0 {
		return errors.New("auth timeouts must not be negative")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port %d collides with server.port", cfg.Metrics.Port)
	}

	return nil
}

// formatValidationErrors renders every failed field on its own line with
// the rule that failed.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value: %v)", fe.Namespace(), rule, fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Warnings reports settings that are valid but probably not intended.
func Warnings(cfg *Config) []string {
	var warnings []string

	if cfg.Bootstrap.DefaultPassword != "" {
		warnings = append(warnings, "bootstrap.default_password is set; prefer WARDEN_BOOTSTRAP_DEFAULT_PASSWORD over a plaintext secret in the file")
	}

	longest := max(cfg.Auth.DirectoryTimeout, cfg.Auth.HostTimeout)
	if cfg.Server.IsEnabled() && cfg.Server.WriteTimeout > 0 && cfg.Server.WriteTimeout <= longest {
		warnings = append(warnings, fmt.Sprintf(
			"server.write_timeout (%s) does not exceed the auth timeouts (%s); slow logons will be cut off", cfg.Server.WriteTimeout, longest))
	}

	if cfg.Store.Type == StoreTypeFile && !cfg.Store.File.Watch && cfg.Server.IsEnabled() {
		warnings = append(warnings, "store.file.watch is disabled; CLI changes reach a running server only after a restart")
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Insecure {
		warnings = append(warnings, "telemetry.insecure sends traces, including usernames, without TLS")
	}

	return warnings
}
