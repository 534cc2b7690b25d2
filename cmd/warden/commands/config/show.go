package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/cli/output"
	"github.com/marmos91/warden/pkg/config"
)

var showOutput string

const redacted = "********"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective Warden configuration after defaults and
environment overrides are applied. Secrets are redacted.

Examples:
  # Show as YAML
  warden config show

  # Show as JSON
  warden config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

// redact returns a copy of cfg safe to print.
func redact(cfg config.Config) config.Config {
	if cfg.Bootstrap.DefaultPassword != "" {
		cfg.Bootstrap.DefaultPassword = redacted
	}
	if cfg.Store.Database.Postgres.Password != "" {
		cfg.Store.Database.Postgres.Password = redacted
	}
	return cfg
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	safe := redact(*cfg)
	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), safe)
	}
	return output.PrintYAML(cmd.OutOrStdout(), safe)
}
