package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the Warden configuration file.

Checks for syntax errors, missing required fields and invalid values, and
warns about settings that are valid but risky.

Examples:
  # Validate default config
  warden config validate

  # Validate specific config file
  warden config validate --config /etc/warden/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := config.Warnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Store type:      %s\n", cfg.Store.Type)
	if cfg.Store.Type == config.StoreTypeFile {
		_, _ = fmt.Fprintf(out, "  Primary doc:     %s\n", cfg.Store.File.PrimaryPath)
		_, _ = fmt.Fprintf(out, "  Registry doc:    %s\n", cfg.Store.File.RegistryPath)
	}
	if cfg.Server.IsEnabled() {
		_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.Server.Port)
	} else {
		_, _ = fmt.Fprintln(out, "  API:             disabled")
	}
	_, _ = fmt.Fprintf(out, "  Default role:    %s\n", cfg.Auth.DefaultRole)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
