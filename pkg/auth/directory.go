package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/models"
)

// Default LDAP ports.
const (
	ldapPort  = "389"
	ldapsPort = "636"
)

// directoryConn is the subset of *ldap.Conn the provider uses.
type directoryConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// DirectoryDialer opens a connection to an LDAP server. The returned close
// function releases the connection.
type DirectoryDialer func(ctx context.Context, serverURL string, timeout time.Duration) (directoryConn, func(), error)

// DirectoryProvider authenticates by binding to an LDAP directory as the
// user, optionally followed by a group membership check.
type DirectoryProvider struct {
	cfg     models.DirectoryConfig
	timeout time.Duration
	dial    DirectoryDialer
}

var _ Provider = (*DirectoryProvider)(nil)

// DirectoryOption configures a DirectoryProvider.
type DirectoryOption func(*DirectoryProvider)

// WithDirectoryDialer replaces the network dialer.
func WithDirectoryDialer(d DirectoryDialer) DirectoryOption {
	return func(p *DirectoryProvider) { p.dial = d }
}

// NewDirectoryProvider creates a directory provider. A timeout of zero
// selects DefaultTimeout.
func NewDirectoryProvider(cfg models.DirectoryConfig, timeout time.Duration, opts ...DirectoryOption) *DirectoryProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &DirectoryProvider{
		cfg:     cfg,
		timeout: timeout,
		dial:    dialLDAP,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *DirectoryProvider) Method() models.Method { return models.MethodDirectory }

// IsAvailable reports whether server and base DN are configured.
func (p *DirectoryProvider) IsAvailable() bool {
	return p.cfg.IsConfigured()
}

// Authenticate binds as the user and, when allowed_groups is set, checks
// the user's memberOf values. An empty password is rejected before any
// network traffic: many servers treat it as an anonymous bind and succeed.
func (p *DirectoryProvider) Authenticate(ctx context.Context, username, password string) bool {
	if !p.IsAvailable() || username == "" || password == "" {
		return false
	}

	return runBounded(ctx, p.timeout, func(ctx context.Context) bool {
		err := p.authenticate(ctx, username, password)
		if err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
				logger.DebugCtx(ctx, "Directory bind rejected", "username", username)
			} else {
				logger.WarnCtx(ctx, "Directory authentication failed",
					logger.Username(username), logger.KeyServer, p.cfg.Server, logger.Err(err))
			}
			return false
		}
		return true
	})
}

// errNotInAllowedGroup reports a successful bind by a user outside
// allowed_groups.
var errNotInAllowedGroup = errors.New("user is not a member of an allowed group")

func (p *DirectoryProvider) authenticate(ctx context.Context, username, password string) error {
	serverURL, err := p.serverURL()
	if err != nil {
		return err
	}

	conn, closeConn, err := p.dial(ctx, serverURL, p.timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", serverURL, err)
	}
	defer closeConn()

	if err := conn.Bind(p.userDN(username), password); err != nil {
		return err
	}

	if len(p.cfg.AllowedGroups) == 0 {
		return nil
	}

	if p.cfg.BindDN != "" {
		if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
			return fmt.Errorf("service account bind: %w", err)
		}
	}

	groups, err := p.memberOf(conn, username)
	if err != nil {
		return err
	}
	if !matchDirectoryGroups(groups, p.cfg.AllowedGroups) {
		logger.InfoCtx(ctx, "Directory user not in an allowed group", "username", username)
		return errNotInAllowedGroup
	}
	return nil
}

// userDN expands the user DN template. The username is DN-escaped; the base
// DN is inserted verbatim.
func (p *DirectoryProvider) userDN(username string) string {
	dn := p.cfg.EffectiveUserDNTemplate()
	dn = strings.ReplaceAll(dn, models.BaseDNPlaceholder, p.cfg.BaseDN)
	return strings.ReplaceAll(dn, models.UsernamePlaceholder, ldap.EscapeDN(username))
}

// searchFilter expands the search filter with a filter-escaped username.
func (p *DirectoryProvider) searchFilter(username string) string {
	return strings.ReplaceAll(p.cfg.EffectiveSearchFilter(), models.UsernamePlaceholder, ldap.EscapeFilter(username))
}

func (p *DirectoryProvider) memberOf(conn directoryConn, username string) ([]string, error) {
	req := ldap.NewSearchRequest(
		p.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2,
		int(p.timeout/time.Second),
		false,
		p.searchFilter(username),
		[]string{"memberOf"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("group search: %w", err)
	}
	if res == nil || len(res.Entries) == 0 {
		return nil, fmt.Errorf("group search: no entry for %q", username)
	}
	return res.Entries[0].GetAttributeValues("memberOf"), nil
}

// serverURL builds the LDAP URL from the configured server, adding the
// scheme and default port when missing.
func (p *DirectoryProvider) serverURL() (string, error) {
	server := strings.TrimSpace(p.cfg.Server)

	if strings.Contains(server, "://") {
		u, err := url.Parse(server)
		if err != nil {
			return "", fmt.Errorf("invalid directory server %q: %w", server, err)
		}
		if u.Port() == "" {
			port := ldapPort
			if u.Scheme == "ldaps" {
				port = ldapsPort
			}
			u.Host = net.JoinHostPort(u.Hostname(), port)
		}
		return u.Scheme + "://" + u.Host, nil
	}

	scheme, port := "ldap", ldapPort
	if p.cfg.UseSSL {
		scheme, port = "ldaps", ldapsPort
	}
	host := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		host = net.JoinHostPort(strings.Trim(server, "[]"), port)
	}
	return scheme + "://" + host, nil
}

// matchDirectoryGroups reports whether any memberOf value matches an
// allowed group, either as a full DN or by the value of its first RDN.
// Comparison is case-insensitive.
func matchDirectoryGroups(memberOf, allowed []string) bool {
	for _, g := range memberOf {
		full := normalizeDN(g)
		short := firstRDNValue(g)
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			if strings.EqualFold(normalizeDN(a), full) {
				return true
			}
			if short != "" && strings.EqualFold(a, short) {
				return true
			}
		}
	}
	return false
}

// normalizeDN returns a canonical form for comparison. Unparseable input is
// returned trimmed.
func normalizeDN(s string) string {
	dn, err := ldap.ParseDN(s)
	if err != nil || len(dn.RDNs) == 0 {
		return strings.TrimSpace(s)
	}
	parts := make([]string, 0, len(dn.RDNs))
	for _, rdn := range dn.RDNs {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, a := range rdn.Attributes {
			attrs = append(attrs, strings.ToLower(a.Type)+"="+a.Value)
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return strings.Join(parts, ",")
}

func firstRDNValue(s string) string {
	dn, err := ldap.ParseDN(s)
	if err != nil || len(dn.RDNs) == 0 || len(dn.RDNs[0].Attributes) == 0 {
		return ""
	}
	return dn.RDNs[0].Attributes[0].Value
}

// dialLDAP connects with go-ldap, applying timeout to the TCP dial and to
// every subsequent LDAP request.
func dialLDAP(ctx context.Context, serverURL string, timeout time.Duration) (directoryConn, func(), error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, nil, err
	}

	dialer := &net.Dialer{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}
	if u.Scheme == "ldaps" {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{
			ServerName: u.Hostname(),
			MinVersion: tls.VersionTLS12,
		}))
	}

	conn, err := ldap.DialURL(serverURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	conn.SetTimeout(timeout)

	return conn, func() { conn.Close() }, nil
}
