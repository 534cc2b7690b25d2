package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/warden/pkg/store/file"
)

const configHeader = `# Warden Configuration File
#
# Every key can be overridden with an environment variable:
#   WARDEN_<SECTION>_<KEY>, e.g. WARDEN_LOGGING_LEVEL=DEBUG
#
# Users, roles and the authentication method live in the credential
# documents, not here. Manage them with "warden user", "warden role" and
# "warden auth set-method".

`

// InitConfig writes a sample configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration to path. The credential
// documents default to the same directory.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()
	dir := filepath.Dir(path)
	cfg.Store.File.PrimaryPath = filepath.Join(dir, file.DefaultPrimaryFile)
	cfg.Store.File.RegistryPath = filepath.Join(dir, file.DefaultRegistryFile)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
