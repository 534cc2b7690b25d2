package models

import (
	"encoding/json"
	"slices"
)

// PrimaryConfig is the primary configuration document.
//
// It is shared with other consumers (mail, shares, branding, ...). Only the
// credential and authentication fields are modelled here; every other
// top-level field is kept in Extra and written back unchanged.
type PrimaryConfig struct {
	// DashboardUser is the canonical admin username.
	DashboardUser string `json:"dashboard_user,omitempty"`

	// DashboardPassHash is the canonical admin's password hash.
	DashboardPassHash string `json:"dashboard_pass_hash,omitempty"`

	// DashboardPass is a legacy plaintext password. Bootstrap hashes it and
	// removes it from the document.
	DashboardPass string `json:"dashboard_pass,omitempty"`

	AuthMethod          Method          `json:"auth_method,omitempty"`
	AuthFallbackEnabled bool            `json:"auth_fallback_enabled"`
	LDAPConfig          DirectoryConfig `json:"ldap_config"`
	WindowsAuthConfig   HostConfig      `json:"windows_auth_config"`

	// Extra holds top-level fields owned by other consumers.
	Extra map[string]json.RawMessage `json:"-"`
}

// primaryKnownFields lists the JSON keys modelled by PrimaryConfig.
var primaryKnownFields = []string{
	"dashboard_user",
	"dashboard_pass_hash",
	"dashboard_pass",
	"auth_method",
	"auth_fallback_enabled",
	"ldap_config",
	"windows_auth_config",
}

// primaryConfigFields has PrimaryConfig's fields without its JSON methods.
type primaryConfigFields PrimaryConfig

// UnmarshalJSON decodes the modelled fields and keeps the rest in Extra.
func (p *PrimaryConfig) UnmarshalJSON(data []byte) error {
	var fields primaryConfigFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range primaryKnownFields {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*p = PrimaryConfig(fields)
	p.Extra = raw
	return nil
}

// MarshalJSON encodes the modelled fields merged with Extra.
// Modelled fields win over an Extra entry with the same key.
func (p PrimaryConfig) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(primaryConfigFields(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return data, nil
	}

	merged := make(map[string]json.RawMessage, len(p.Extra)+len(primaryKnownFields))
	for k, v := range p.Extra {
		if slices.Contains(primaryKnownFields, k) {
			continue
		}
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// AuthConfig returns the authentication settings view of the document.
func (p *PrimaryConfig) AuthConfig() AuthConfig {
	return AuthConfig{
		PrimaryMethod:   p.AuthMethod,
		FallbackEnabled: p.AuthFallbackEnabled,
		Directory:       p.LDAPConfig,
		Host:            p.WindowsAuthConfig,
	}.Normalized()
}

// SetAuthConfig writes the authentication settings into the document.
func (p *PrimaryConfig) SetAuthConfig(c AuthConfig) {
	c = c.Normalized()
	p.AuthMethod = c.PrimaryMethod
	p.AuthFallbackEnabled = c.FallbackEnabled
	p.LDAPConfig = c.Directory
	p.WindowsAuthConfig = c.Host
}

// Credential returns the canonical admin credential view of the document.
func (p *PrimaryConfig) Credential() PrimaryCredential {
	return PrimaryCredential{
		CanonicalUsername: p.DashboardUser,
		PasswordHash:      p.DashboardPassHash,
	}
}

// Clone returns a deep copy of the document.
func (p *PrimaryConfig) Clone() *PrimaryConfig {
	if p == nil {
		return nil
	}
	c := *p
	c.LDAPConfig.AllowedGroups = slices.Clone(p.LDAPConfig.AllowedGroups)
	c.WindowsAuthConfig.AllowedGroups = slices.Clone(p.WindowsAuthConfig.AllowedGroups)
	if p.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return &c
}

// PrimaryCredential is the canonical admin's credential.
type PrimaryCredential struct {
	CanonicalUsername string
	PasswordHash      string
}

// IsCanonical reports whether username is the canonical admin.
// An unset canonical username matches nobody.
func (c PrimaryCredential) IsCanonical(username string) bool {
	return c.CanonicalUsername != "" && username == c.CanonicalUsername
}
