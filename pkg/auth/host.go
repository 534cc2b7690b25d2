package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/auth/sid"
	"github.com/marmos91/warden/pkg/models"
)

// HostGroup is a group from the host logon token.
type HostGroup struct {
	Name string // DOMAIN\name; empty when the SID could not be resolved
	SID  string
}

// HostLogon performs an operating-system logon. wantGroups asks the backend
// to return the token's groups; a backend that cannot enumerate groups must
// return an error in that case rather than an empty list.
type HostLogon interface {
	Available() bool
	Logon(ctx context.Context, username, domain, password string, wantGroups bool) ([]HostGroup, error)
}

// ErrGroupsUnsupported is returned by a HostLogon that cannot enumerate the
// groups of a logon.
var ErrGroupsUnsupported = errors.New("auth: host logon cannot enumerate groups")

// HostProvider authenticates against the host operating system: LogonUserW
// on Windows, a Kerberos AS exchange elsewhere.
type HostProvider struct {
	cfg     models.HostConfig
	timeout time.Duration
	backend HostLogon
}

var _ Provider = (*HostProvider)(nil)

// NewHostProvider creates a host provider. A nil backend selects the
// platform default with its default configuration.
func NewHostProvider(cfg models.HostConfig, timeout time.Duration, backend HostLogon) *HostProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if backend == nil {
		backend = PlatformHostLogon("")
	}
	return &HostProvider{cfg: cfg, timeout: timeout, backend: backend}
}

func (p *HostProvider) Method() models.Method { return models.MethodHost }

// IsAvailable reflects platform capability, not configuration.
func (p *HostProvider) IsAvailable() bool {
	return p.backend != nil && p.backend.Available()
}

func (p *HostProvider) Authenticate(ctx context.Context, username, password string) bool {
	if !p.IsAvailable() || username == "" || password == "" {
		return false
	}

	user, domain := splitHostPrincipal(username, p.cfg.Domain)
	wantGroups := len(p.cfg.AllowedGroups) > 0

	return runBounded(ctx, p.timeout, func(ctx context.Context) bool {
		groups, err := p.backend.Logon(ctx, user, domain, password, wantGroups)
		if err != nil {
			logger.DebugCtx(ctx, "Host logon failed",
				logger.Username(username), logger.KeyDomain, domain, logger.Err(err))
			return false
		}
		if !wantGroups {
			return true
		}
		if !matchHostGroups(groups, p.cfg.AllowedGroups) {
			logger.InfoCtx(ctx, "Host user not in an allowed group", "username", username)
			return false
		}
		return true
	})
}

// splitHostPrincipal splits DOMAIN\user. A username with no domain marker
// takes the configured domain. A UPN (user@domain) is passed through with an
// empty domain; the logon API parses it.
func splitHostPrincipal(username, defaultDomain string) (user, domain string) {
	if i := strings.IndexByte(username, '\\'); i >= 0 {
		return username[i+1:], username[:i]
	}
	if strings.Contains(username, "@") {
		return username, ""
	}
	return username, defaultDomain
}

// matchHostGroups reports whether any group matches an allowed entry.
// Entries may be a SID string, a DOMAIN\name or a bare name; names compare
// case-insensitively.
func matchHostGroups(groups []HostGroup, allowed []string) bool {
	for _, g := range groups {
		short := g.Name
		if i := strings.LastIndexByte(short, '\\'); i >= 0 {
			short = short[i+1:]
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			switch {
			case a == "":
				continue
			case sid.IsSID(a):
				if g.SID != "" && sid.EqualString(a, g.SID) {
					return true
				}
			case strings.Contains(a, `\`):
				if g.Name != "" && strings.EqualFold(a, g.Name) {
					return true
				}
			default:
				if short != "" && strings.EqualFold(a, short) {
					return true
				}
			}
		}
	}
	return false
}

// collectGroups resolves n group SIDs to HostGroups. Groups whose name
// cannot be resolved and which are not well-known are skipped.
func collectGroups(n int, sidAt func(i int) string, resolve func(i int) (string, error)) []HostGroup {
	groups := make([]HostGroup, 0, n)
	for i := 0; i < n; i++ {
		s := sidAt(i)
		name, err := resolve(i)
		if err != nil {
			wk, ok := sid.WellKnownName(s)
			if !ok {
				continue
			}
			name = wk
		}
		groups = append(groups, HostGroup{Name: name, SID: s})
	}
	return groups
}
