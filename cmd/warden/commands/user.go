package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/cli/output"
	"github.com/marmos91/warden/pkg/accounts"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard users",
}

var (
	userOutput     string
	userRole       string
	userPassStdin  bool
	userNoPassword bool
)

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user",
	Long: `Add a user to the registry.

The password is prompted for unless --password-stdin is given. Users added
with --no-password can only sign in through the directory or the host.

Examples:
  warden user add alice --role operator
  echo "$PASSWORD" | warden user add bob --password-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"rm"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

var userSetRoleCmd = &cobra.Command{
	Use:   "set-role <username> <role>",
	Short: "Assign a role to a user",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserSetRole,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserPasswd,
}

func init() {
	userListCmd.Flags().StringVarP(&userOutput, "output", "o", "table", "Output format (table|json|yaml)")

	userAddCmd.Flags().StringVar(&userRole, "role", "viewer", "Role to assign")
	userAddCmd.Flags().BoolVar(&userPassStdin, "password-stdin", false, "Read the password from stdin")
	userAddCmd.Flags().BoolVar(&userNoPassword, "no-password", false, "Create the user without a local password")
	userAddCmd.MarkFlagsMutuallyExclusive("password-stdin", "no-password")

	userPasswdCmd.Flags().BoolVar(&userPassStdin, "password-stdin", false, "Read the password from stdin")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userSetRoleCmd)
	userCmd.AddCommand(userPasswdCmd)
}

// userTable renders user summaries.
type userTable []accounts.UserSummary

func (t userTable) Headers() []string {
	return []string{"USERNAME", "ROLE", "LOCAL PASSWORD", "CANONICAL"}
}

func (t userTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		rows = append(rows, []string{u.Username, u.Role, strconv.FormatBool(u.HasPassword), strconv.FormatBool(u.Canonical)})
	}
	return rows
}

var _ output.TableRenderer = userTable(nil)

func runUserList(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd, userOutput)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	users, err := c.accounts.ListUsers(ctx)
	if err != nil {
		return err
	}
	if printer.Format() == output.FormatTable {
		return printer.Print(userTable(users))
	}
	return printer.Print(users)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	var password string
	if !userNoPassword {
		var err error
		password, err = readNewPassword(cmd.InOrStdin(), userPassStdin, "Password")
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.accounts.CreateUser(ctx, args[0], userRole, password); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User %q added with role %q\n", args[0], userRole)
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.accounts.DeleteUser(ctx, args[0]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User %q deleted\n", args[0])
	return nil
}

func runUserSetRole(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.accounts.AssignRole(ctx, args[0], args[1]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User %q now has role %q\n", args[0], args[1])
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	password, err := readNewPassword(cmd.InOrStdin(), userPassStdin, "New password")
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.accounts.ChangePassword(ctx, args[0], password); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Password changed for %q\n", args[0])
	return nil
}
