package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marmos91/warden/internal/cli/output"
	"github.com/marmos91/warden/internal/cli/prompt"
	"github.com/marmos91/warden/pkg/models"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect and configure authentication",
}

var (
	authOutput    string
	authPassStdin bool
)

var authCheckCmd = &cobra.Command{
	Use:   "check <username>",
	Short: "Try to authenticate a user",
	Long: `Authenticate a user exactly as the API would and print the provider
that answered and the rights the user would hold.

Exits with an error when authentication fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthCheck,
}

var authMethodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "Show the configured and available authentication methods",
	Args:  cobra.NoArgs,
	RunE:  runAuthMethods,
}

var (
	errAuthCheckFailed    = errors.New("authentication failed")
	errMethodNotSpecified = errors.New("method required: local, directory or host")
)

// set-method flags
var (
	setFallback        bool
	setServer          string
	setBaseDN          string
	setUserDNTemplate  string
	setUseSSL          bool
	setBindDN          string
	setBindPassword    string
	setSearchFilter    string
	setDirectoryGroups []string
	setDomain          string
	setHostGroups      []string
)

var authSetMethodCmd = &cobra.Command{
	Use:   "set-method [local|directory|host]",
	Short: "Change the primary authentication method",
	Long: `Change the primary authentication method and its settings.

Only the flags given are changed; everything else keeps its current value.
Without an argument the method is chosen interactively.

Examples:
  warden auth set-method local
  warden auth set-method directory --server ldap.example.com --base-dn dc=example,dc=com --fallback
  warden auth set-method host --domain CORP --host-group "Dashboard Admins"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSetMethod,
}

func init() {
	authCheckCmd.Flags().BoolVar(&authPassStdin, "password-stdin", false, "Read the password from stdin")
	authMethodsCmd.Flags().StringVarP(&authOutput, "output", "o", "table", "Output format (table|json|yaml)")

	addSetMethodFlags(authSetMethodCmd.Flags())

	authCmd.AddCommand(authCheckCmd)
	authCmd.AddCommand(authMethodsCmd)
	authCmd.AddCommand(authSetMethodCmd)
}

func addSetMethodFlags(f *pflag.FlagSet) {
	f.BoolVar(&setFallback, "fallback", false, "Fall back to local authentication when the primary method fails")
	f.StringVar(&setServer, "server", "", "Directory server (host, host:port or ldap[s]://host)")
	f.StringVar(&setBaseDN, "base-dn", "", "Directory base DN")
	f.StringVar(&setUserDNTemplate, "user-dn-template", "", "Bind DN template containing {username}")
	f.BoolVar(&setUseSSL, "use-ssl", false, "Connect with ldaps://")
	f.StringVar(&setBindDN, "bind-dn", "", "Service account DN for group searches")
	f.StringVar(&setBindPassword, "bind-password", "", "Service account password")
	f.StringVar(&setSearchFilter, "search-filter", "", "Filter locating the user entry, containing {username}")
	f.StringSliceVar(&setDirectoryGroups, "directory-group", nil, "Allowed directory group (repeatable)")
	f.StringVar(&setDomain, "domain", "", "Host logon domain")
	f.StringSliceVar(&setHostGroups, "host-group", nil, "Allowed host group (repeatable)")
}

func runAuthCheck(cmd *cobra.Command, args []string) error {
	var password string
	var err error
	if authPassStdin {
		password, err = prompt.ReadSecret(cmd.InOrStdin())
	} else {
		password, err = prompt.Password("Password")
	}
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res := c.manager.Attempt(ctx, args[0], password)

	pairs := [][2]string{
		{"Result", resultLabel(res.OK)},
		{"Method", res.Method.String()},
		{"Fallback", strconv.FormatBool(res.Fallback)},
		{"Primary unavailable", strconv.FormatBool(res.Unavailable)},
	}
	if res.OK {
		role, grants, err := c.resolver.Rights(ctx, args[0])
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"Role", role}, [2]string{"Rights", grantedRights(grants)})
	}
	if err := output.KeyValue(cmd.OutOrStdout(), pairs); err != nil {
		return err
	}

	if !res.OK {
		return errAuthCheckFailed
	}
	return nil
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func grantedRights(grants models.RoleRights) string {
	var names []string
	for _, right := range models.KnownRights() {
		if grants[right] {
			names = append(names, right)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

// methodsView is the result of "auth methods".
type methodsView struct {
	PrimaryMethod    models.Method   `json:"primary_method" yaml:"primary_method"`
	FallbackEnabled  bool            `json:"fallback_enabled" yaml:"fallback_enabled"`
	AvailableMethods []models.Method `json:"available_methods" yaml:"available_methods"`
}

func (v methodsView) Headers() []string {
	return []string{"METHOD", "PRIMARY", "AVAILABLE"}
}

func (v methodsView) Rows() [][]string {
	available := make(map[models.Method]bool, len(v.AvailableMethods))
	for _, m := range v.AvailableMethods {
		available[m] = true
	}
	rows := make([][]string, 0, len(models.AllMethods()))
	for _, m := range models.AllMethods() {
		rows = append(rows, []string{m.String(), strconv.FormatBool(m == v.PrimaryMethod), strconv.FormatBool(available[m])})
	}
	return rows
}

func runAuthMethods(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd, authOutput)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	cfg := c.manager.Config()
	view := methodsView{
		PrimaryMethod:    cfg.PrimaryMethod,
		FallbackEnabled:  cfg.FallbackEnabled,
		AvailableMethods: c.manager.AvailableMethods(),
	}
	if err := printer.Print(view); err != nil {
		return err
	}
	if printer.Format() == output.FormatTable {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nFallback to local: %t\n", view.FallbackEnabled)
	}
	return nil
}

// applyMethodFlags copies the flags the user set onto cfg.
func applyMethodFlags(cmd *cobra.Command, method models.Method, cfg *models.AuthConfig) {
	cfg.PrimaryMethod = method
	changed := cmd.Flags().Changed

	if changed("fallback") {
		cfg.FallbackEnabled = setFallback
	}

	d := &cfg.Directory
	if changed("server") {
		d.Server = setServer
	}
	if changed("base-dn") {
		d.BaseDN = setBaseDN
	}
	if changed("user-dn-template") {
		d.UserDNTemplate = setUserDNTemplate
	}
	if changed("use-ssl") {
		d.UseSSL = setUseSSL
	}
	if changed("bind-dn") {
		d.BindDN = setBindDN
	}
	if changed("bind-password") {
		d.BindPassword = setBindPassword
	}
	if changed("search-filter") {
		d.SearchFilter = setSearchFilter
	}
	if changed("directory-group") {
		d.AllowedGroups = setDirectoryGroups
	}

	if changed("domain") {
		cfg.Host.Domain = setDomain
	}
	if changed("host-group") {
		cfg.Host.AllowedGroups = setHostGroups
	}
}

func chooseMethod(args []string, interactive bool) (models.Method, error) {
	if len(args) == 1 {
		m := models.Method(strings.ToLower(args[0])).Normalize()
		if !m.IsValid() {
			return "", fmt.Errorf("%w: unknown method %q", models.ErrInvalidAuthConfig, args[0])
		}
		return m, nil
	}
	if !interactive {
		return "", errMethodNotSpecified
	}

	items := make([]string, 0, len(models.AllMethods()))
	for _, m := range models.AllMethods() {
		items = append(items, m.String())
	}
	choice, err := prompt.Select("Primary authentication method", items)
	if err != nil {
		return "", err
	}
	return models.Method(choice), nil
}

func runAuthSetMethod(cmd *cobra.Command, args []string) error {
	interactive := prompt.IsTerminal(cmd.InOrStdin())
	method, err := chooseMethod(args, interactive)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openOfflineCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	cfg := c.accounts.AuthConfig()
	applyMethodFlags(cmd, method, &cfg)

	if method == models.MethodDirectory && !cfg.Directory.IsConfigured() && interactive {
		if cfg.Directory.Server, err = prompt.Input("Directory server", cfg.Directory.Server, nil); err != nil {
			return err
		}
		if cfg.Directory.BaseDN, err = prompt.Input("Base DN", cfg.Directory.BaseDN, nil); err != nil {
			return err
		}
	}

	if err := c.accounts.SetAuthConfig(ctx, cfg); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Primary authentication method set to %q (fallback: %t)\n",
		cfg.PrimaryMethod, cfg.FallbackEnabled)
	return nil
}
