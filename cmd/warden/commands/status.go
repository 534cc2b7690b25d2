package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/warden/internal/cli/prompt"
	"github.com/marmos91/warden/pkg/apiclient"
	"github.com/marmos91/warden/pkg/models"
)

var (
	statusServer        string
	statusOutput        string
	statusUsername      string
	statusPasswordStdin bool
	statusTimeout       time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	Long: `Query a running Warden API server for liveness, store readiness and the
configured authentication methods.

With --username the command also authenticates and shows the role and
rights the server resolves for that user.

Examples:
  # Check the server configured in the config file
  warden status

  # Check a remote server and show who you are
  warden status --server https://warden.internal:8080 --username alice

  # Output as JSON
  warden status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "", "API base URL (default: http://localhost:<server.port>)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().StringVarP(&statusUsername, "username", "u", "", "Authenticate as this user")
	statusCmd.Flags().BoolVar(&statusPasswordStdin, "password-stdin", false, "Read the password from stdin")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "Request timeout")
}

// ServerStatus is the result of a status query.
type ServerStatus struct {
	Server    string   `json:"server" yaml:"server"`
	Running   bool     `json:"running" yaml:"running"`
	Ready     bool     `json:"ready" yaml:"ready"`
	Message   string   `json:"message" yaml:"message"`
	Primary   string   `json:"primary_method,omitempty" yaml:"primary_method,omitempty"`
	Fallback  bool     `json:"fallback_enabled" yaml:"fallback_enabled"`
	Available []string `json:"available_methods,omitempty" yaml:"available_methods,omitempty"`
	Username  string   `json:"username,omitempty" yaml:"username,omitempty"`
	Role      string   `json:"role,omitempty" yaml:"role,omitempty"`
	Rights    []string `json:"rights,omitempty" yaml:"rights,omitempty"`
}

func (s ServerStatus) Headers() []string { return []string{"FIELD", "VALUE"} }

func (s ServerStatus) Rows() [][]string {
	rows := [][]string{
		{"Server", s.Server},
		{"Running", yesNo(s.Running)},
		{"Ready", yesNo(s.Ready)},
		{"Message", s.Message},
	}
	if s.Primary != "" {
		rows = append(rows,
			[]string{"Primary method", s.Primary},
			[]string{"Fallback", yesNo(s.Fallback)},
			[]string{"Available", strings.Join(s.Available, ", ")},
		)
	}
	if s.Username != "" {
		rows = append(rows,
			[]string{"User", s.Username},
			[]string{"Role", s.Role},
			[]string{"Rights", strings.Join(s.Rights, ", ")},
		)
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func runStatus(cmd *cobra.Command, _ []string) error {
	printer, err := newPrinter(cmd, statusOutput)
	if err != nil {
		return err
	}

	server := statusServer
	if server == "" {
		cfg, err := loadOffline()
		if err != nil {
			return err
		}
		server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	client := apiclient.New(server)
	if statusUsername != "" {
		var password string
		if statusPasswordStdin {
			password, err = prompt.ReadSecret(cmd.InOrStdin())
		} else {
			password, err = prompt.Password("Password")
		}
		if err != nil {
			return err
		}
		client = client.WithCredentials(statusUsername, password)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	status, err := queryStatus(ctx, client, server, statusUsername != "")
	if perr := printer.Print(status); perr != nil {
		return perr
	}
	return err
}

// queryStatus fills a ServerStatus. An unreachable server is reported in the
// status, not as an error; a failed login is both.
func queryStatus(ctx context.Context, client *apiclient.Client, server string, withUser bool) (ServerStatus, error) {
	status := ServerStatus{Server: server, Message: "Server is not running"}

	health, err := client.Health(ctx)
	if err != nil {
		return status, nil
	}
	status.Running = health.Healthy()
	status.Message = "Server is running and healthy"

	if _, err := client.Ready(ctx); err != nil {
		status.Message = fmt.Sprintf("Server is running but not ready: %v", err)
	} else {
		status.Ready = true
	}

	if methods, err := client.Methods(ctx); err == nil {
		status.Primary = methods.PrimaryMethod.String()
		status.Fallback = methods.FallbackEnabled
		for _, m := range methods.AvailableMethods {
			status.Available = append(status.Available, m.String())
		}
	}

	if !withUser {
		return status, nil
	}

	me, err := client.Me(ctx)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			return status, errAuthCheckFailed
		}
		return status, err
	}
	status.Username = me.Username
	status.Role = me.Role
	for _, right := range models.KnownRights() {
		if me.Rights[right] {
			status.Rights = append(status.Rights, right)
		}
	}
	return status, nil
}
