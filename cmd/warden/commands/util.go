package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/cli/output"
	"github.com/marmos91/warden/internal/cli/prompt"
	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/bootstrap"
	"github.com/marmos91/warden/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadOffline loads the configuration for commands that edit the documents
// directly. A missing file is fine; logs go to stderr so they never mix
// with command output.
func loadOffline() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getConfigSource describes where the configuration was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// newPrinter builds a printer from the command's --output flag.
func newPrinter(cmd *cobra.Command, format string) (*output.Printer, error) {
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), f, prompt.Interactive()), nil
}

// readNewPassword returns the password from stdin when fromStdin is set,
// and prompts for it otherwise.
func readNewPassword(in io.Reader, fromStdin bool, label string) (string, error) {
	if fromStdin {
		return prompt.ReadPassword(in)
	}
	return prompt.NewPassword(label)
}

// printBootstrap reports a bootstrap outcome. A generated password is shown
// once and never logged.
func printBootstrap(w io.Writer, res bootstrap.Result) {
	if res.GeneratedPassword != "" {
		_, _ = fmt.Fprintln(w, "==========================================")
		_, _ = fmt.Fprintf(w, "Admin user:     %s\n", res.Username)
		_, _ = fmt.Fprintf(w, "Admin password: %s\n", res.GeneratedPassword)
		_, _ = fmt.Fprintln(w, "This password is shown only once.")
		_, _ = fmt.Fprintln(w, "==========================================")
		return
	}
	state := "unchanged"
	if res.Persisted {
		state = "updated"
	}
	_, _ = fmt.Fprintf(w, "Admin credential for %q %s (source: %s)\n", res.Username, state, res.Source)
}
