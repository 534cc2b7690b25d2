package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// UsernamePlaceholder is substituted with the (escaped) username in directory
// DN and filter templates.
const UsernamePlaceholder = "{username}"

// BaseDNPlaceholder is substituted with the configured base DN in DN templates.
const BaseDNPlaceholder = "{base_dn}"

// DefaultUserDNTemplate is used when no user DN template is configured.
const DefaultUserDNTemplate = "uid={username},{base_dn}"

// DefaultSearchFilter is used for the post-bind group lookup when none is configured.
const DefaultSearchFilter = "(uid={username})"

// DirectoryConfig holds LDAP directory settings.
// Field names follow the persisted "ldap_config" object.
type DirectoryConfig struct {
	// Server is the directory host, optionally with a port or an
	// ldap:// / ldaps:// scheme.
	Server string `json:"server" yaml:"server" mapstructure:"server"`

	// BaseDN is the search base and the default DN suffix.
	BaseDN string `json:"base_dn" yaml:"base_dn" mapstructure:"base_dn"`

	// UserDNTemplate builds the bind DN. Must contain {username}.
	UserDNTemplate string `json:"user_dn_template" yaml:"user_dn_template" mapstructure:"user_dn_template" validate:"omitempty,contains={username}"`

	// UseSSL selects ldaps:// instead of ldap://.
	UseSSL bool `json:"use_ssl" yaml:"use_ssl" mapstructure:"use_ssl"`

	// BindDN and BindPassword, when set, are used for the group search
	// instead of the authenticating user's own bind.
	BindDN       string `json:"bind_dn,omitempty" yaml:"bind_dn,omitempty" mapstructure:"bind_dn"`
	BindPassword string `json:"bind_password,omitempty" yaml:"bind_password,omitempty" mapstructure:"bind_password"`

	// SearchFilter locates the user's entry for the group check.
	SearchFilter string `json:"search_filter,omitempty" yaml:"search_filter,omitempty" mapstructure:"search_filter"`

	// AllowedGroups restricts access to members of these groups. Empty means
	// any user that can bind is accepted.
	AllowedGroups []string `json:"allowed_groups,omitempty" yaml:"allowed_groups,omitempty" mapstructure:"allowed_groups"`
}

// IsConfigured reports whether the minimum settings for a bind are present.
func (c DirectoryConfig) IsConfigured() bool {
	return strings.TrimSpace(c.Server) != "" && strings.TrimSpace(c.BaseDN) != ""
}

// EffectiveUserDNTemplate returns the configured template or the default.
func (c DirectoryConfig) EffectiveUserDNTemplate() string {
	if c.UserDNTemplate == "" {
		return DefaultUserDNTemplate
	}
	return c.UserDNTemplate
}

// EffectiveSearchFilter returns the configured filter or the default.
func (c DirectoryConfig) EffectiveSearchFilter() string {
	if c.SearchFilter == "" {
		return DefaultSearchFilter
	}
	return c.SearchFilter
}

// HostConfig holds operating-system logon settings.
// Field names follow the persisted "windows_auth_config" object.
type HostConfig struct {
	// Domain is prefixed to usernames that carry no domain marker.
	Domain string `json:"domain" yaml:"domain" mapstructure:"domain"`

	// AllowedGroups restricts access to members of these groups.
	AllowedGroups []string `json:"allowed_groups,omitempty" yaml:"allowed_groups,omitempty" mapstructure:"allowed_groups"`
}

// AuthConfig selects the primary authentication method and the fallback policy.
type AuthConfig struct {
	PrimaryMethod   Method          `json:"auth_method" yaml:"auth_method" mapstructure:"auth_method" validate:"omitempty,oneof=local directory host"`
	FallbackEnabled bool            `json:"auth_fallback_enabled" yaml:"auth_fallback_enabled" mapstructure:"auth_fallback_enabled"`
	Directory       DirectoryConfig `json:"ldap_config" yaml:"ldap_config" mapstructure:"ldap_config"`
	Host            HostConfig      `json:"windows_auth_config" yaml:"windows_auth_config" mapstructure:"windows_auth_config"`
}

// Normalized returns a copy with aliases resolved and the primary method defaulted.
func (c AuthConfig) Normalized() AuthConfig {
	c.PrimaryMethod = c.PrimaryMethod.Normalize()
	return c
}

var authValidator = validator.New()

// Validate checks the configuration before it is persisted.
//
// The user DN template placeholder is checked here, at configuration time,
// so that a bad template never reaches an authentication attempt.
func (c AuthConfig) Validate() error {
	n := c.Normalized()
	if err := authValidator.Struct(n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuthConfig, err)
	}
	if n.PrimaryMethod == MethodDirectory && !n.Directory.IsConfigured() {
		return fmt.Errorf("%w: directory method requires server and base_dn", ErrInvalidAuthConfig)
	}
	if n.Directory.SearchFilter != "" && !strings.Contains(n.Directory.SearchFilter, UsernamePlaceholder) {
		return fmt.Errorf("%w: search_filter must contain %s", ErrInvalidAuthConfig, UsernamePlaceholder)
	}
	if (n.Directory.BindDN == "") != (n.Directory.BindPassword == "") {
		return fmt.Errorf("%w: bind_dn and bind_password must be set together", ErrInvalidAuthConfig)
	}
	return nil
}
