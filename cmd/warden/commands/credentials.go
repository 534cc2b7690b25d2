package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/cli/prompt"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Recover the admin credential",
}

var credentialsRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Re-run bootstrap and restore the admin role",
	Long: `Forget any cached credential, run bootstrap again and force the
canonical admin's registry record back to the admin role.

Users, roles and the authentication method are kept.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsRepair,
}

var resetForce bool

var credentialsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Factory reset the credential documents",
	Long: `Remove every user, every custom role and the authentication settings,
then bootstrap a fresh canonical admin.

Settings in the primary document that belong to other components are kept.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsReset,
}

func init() {
	credentialsResetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation")

	credentialsCmd.AddCommand(credentialsRepairCmd)
	credentialsCmd.AddCommand(credentialsResetCmd)
}

func runCredentialsRepair(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.accounts.RepairCredentials(ctx)
	if err != nil {
		return err
	}
	printBootstrap(cmd.OutOrStdout(), res)
	return nil
}

func runCredentialsReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		ok, err := prompt.ConfirmDanger("This deletes every user and role", "reset")
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.accounts.FactoryReset(ctx)
	if err != nil {
		return err
	}
	printBootstrap(cmd.OutOrStdout(), res)
	return nil
}
