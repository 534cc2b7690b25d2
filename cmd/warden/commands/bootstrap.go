package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Establish the canonical admin credential",
	Long: `Make sure the canonical admin has a hashed password.

An existing hash is kept, a legacy plaintext password is hashed and removed,
and when no password exists WARDEN_BOOTSTRAP_DEFAULT_PASSWORD is used or a
random password is generated and printed once.

Running it again is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.accounts.EnsureCredential(ctx)
	if err != nil {
		return err
	}
	printBootstrap(cmd.OutOrStdout(), res)
	return nil
}
