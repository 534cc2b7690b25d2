package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Warden configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/warden/config.yaml
and the credential documents are placed next to it.

Examples:
  # Initialize with default location
  warden init

  # Initialize with custom path
  warden init --config /etc/warden/config.yaml

  # Force overwrite existing config
  warden init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Create the admin credential with: warden bootstrap")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: warden start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: warden start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nSet WARDEN_BOOTSTRAP_DEFAULT_PASSWORD to choose the first admin password.")
	_, _ = fmt.Fprintln(out, "Otherwise a random one is generated and printed once.")
	return nil
}
