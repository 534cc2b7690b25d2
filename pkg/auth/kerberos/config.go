package kerberos

import (
	"fmt"
	"os"

	krb5config "github.com/jcmturner/gokrb5/v8/config"
)

// DefaultKrb5ConfPath is used when neither configuration nor environment
// name a krb5.conf.
const DefaultKrb5ConfPath = "/etc/krb5.conf"

// Krb5ConfEnv overrides the configured krb5.conf path.
const Krb5ConfEnv = "WARDEN_KERBEROS_KRB5CONF"

// resolveKrb5ConfPath resolves the krb5.conf path with environment variable override.
//
// Resolution order (highest priority first):
//  1. WARDEN_KERBEROS_KRB5CONF env var
//  2. configPath from configuration file
//  3. Default: /etc/krb5.conf
func resolveKrb5ConfPath(configPath string) string {
	if envPath := os.Getenv(Krb5ConfEnv); envPath != "" {
		return envPath
	}
	if configPath != "" {
		return configPath
	}
	return DefaultKrb5ConfPath
}

// loadKrb5Conf reads and parses a Kerberos configuration file.
func loadKrb5Conf(path string) (*krb5config.Config, error) {
	cfg, err := krb5config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parse krb5.conf: %w", err)
	}
	return cfg, nil
}
