package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/cli/output"
	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/models"
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage roles and their rights",
}

var roleOutput string

var roleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List roles and the rights they grant",
	Args:    cobra.NoArgs,
	RunE:    runRoleList,
}

var roleSetCmd = &cobra.Command{
	Use:   "set <role> [right[=true|false]...]",
	Short: "Create or replace a role",
	Long: `Create or replace a role. Rights that are not named are denied.

Rights: ` + strings.Join(models.KnownRights(), ", ") + `

Examples:
  warden role set auditor view_metrics view_recent_files
  warden role set operator manage_service view_metrics=true modify_layout=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoleSet,
}

var roleDeleteCmd = &cobra.Command{
	Use:     "delete <role>",
	Aliases: []string{"rm"},
	Short:   "Delete a role",
	Long: `Delete a role. Users still assigned to it are denied every right until
they are given another role.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoleDelete,
}

func init() {
	roleListCmd.Flags().StringVarP(&roleOutput, "output", "o", "table", "Output format (table|json|yaml)")

	roleCmd.AddCommand(roleListCmd)
	roleCmd.AddCommand(roleSetCmd)
	roleCmd.AddCommand(roleDeleteCmd)
}

// roleTable renders one row per role and one column per right.
type roleTable map[string]models.RoleRights

func (t roleTable) Headers() []string {
	return append([]string{"ROLE"}, models.KnownRights()...)
}

func (t roleTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, name := range accounts.RoleNames(t) {
		row := []string{name}
		for _, right := range models.KnownRights() {
			row = append(row, strconv.FormatBool(t[name][right]))
		}
		rows = append(rows, row)
	}
	return rows
}

var _ output.TableRenderer = roleTable(nil)

// parseGrants turns "right" and "right=bool" arguments into a grant table.
func parseGrants(args []string) (map[string]bool, error) {
	grants := make(map[string]bool, len(args))
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		granted := true
		if hasValue {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("invalid grant %q: value must be true or false", arg)
			}
			granted = b
		}
		grants[strings.TrimSpace(name)] = granted
	}
	return grants, nil
}

func runRoleList(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd, roleOutput)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	roles, err := c.accounts.ListRoles(ctx)
	if err != nil {
		return err
	}
	if printer.Format() == output.FormatTable {
		return printer.Print(roleTable(roles))
	}
	return printer.Print(roles)
}

func runRoleSet(cmd *cobra.Command, args []string) error {
	grants, err := parseGrants(args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.accounts.PutRole(ctx, args[0], grants); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Role %q saved\n", args[0])
	return nil
}

func runRoleDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.accounts.DeleteRole(ctx, args[0]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Role %q deleted\n", args[0])
	return nil
}
