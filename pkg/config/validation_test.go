package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("Expected error for nil config")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidServerPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_NegativePort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative port")
	}
}

func TestValidate_UnknownStoreType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "etcd"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown store type")
	}
	if !strings.Contains(err.Error(), "Store.Type") {
		t.Errorf("Expected error to name Store.Type, got: %v", err)
	}
}

func TestValidate_MissingRegistryPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.File.RegistryPath = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for missing registry path")
	}
	if !strings.Contains(err.Error(), "RegistryPath") {
		t.Errorf("Expected error about the registry path, got: %v", err)
	}
}

func TestValidate_BcryptCostRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Bootstrap.BcryptCost = 2

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for bcrypt cost below the minimum")
	}

	cfg.Bootstrap.BcryptCost = 32
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for bcrypt cost above the maximum")
	}
}

func TestValidate_NegativeAuthTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.DirectoryTimeout = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative timeout")
	}
}

func TestValidate_MissingDefaultRole(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.DefaultRole = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for missing default role")
	}
}

func TestValidate_MetricsPortCollision(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Server.Port

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for colliding ports")
	}
	if !strings.Contains(err.Error(), "collides") {
		t.Errorf("Unexpected error: %v", err)
	}

	cfg.Metrics.Port = 0
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected /metrics on the API port to be valid, got: %v", err)
	}
}

func TestValidate_ProfilingTypes(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Profiling.Enabled = true
	cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "bogus"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown profile type")
	}
	if !strings.Contains(err.Error(), "profile_types") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidate_SampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestWarnings(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.File.Watch = true
	if w := Warnings(cfg); len(w) != 0 {
		t.Errorf("Expected no warnings for defaults with watch, got %v", w)
	}

	cfg.Bootstrap.DefaultPassword = "in-the-file"
	cfg.Server.WriteTimeout = cfg.Auth.HostTimeout
	cfg.Store.File.Watch = false
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Insecure = true

	warnings := Warnings(cfg)
	if len(warnings) != 4 {
		t.Fatalf("Expected 4 warnings, got %d: %v", len(warnings), warnings)
	}
	for i, want := range []string{"default_password", "write_timeout", "watch", "insecure"} {
		if !strings.Contains(warnings[i], want) {
			t.Errorf("Warning %d = %q, want it to mention %q", i, warnings[i], want)
		}
	}
}
