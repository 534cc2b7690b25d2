package models

import (
	"regexp"
	"slices"
)

// usernamePattern defines the valid format for usernames: letters, digits,
// dots, hyphens, underscores, and the domain markers @ and \, 1-128 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@\\-]{1,128}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// UserRecord is one entry of the user registry.
type UserRecord struct {
	Username     string `json:"username"`
	Role         string `json:"role"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// UserRegistry is the user registry document.
type UserRegistry struct {
	Users []UserRecord `json:"users"`

	// Roles maps role names to rights tables. A nil map means the registry
	// has never defined roles and DefaultRoles applies.
	Roles map[string]RoleRights `json:"roles,omitempty"`
}

// Find returns the index of the first record with the given username, or -1.
func (r *UserRegistry) Find(username string) int {
	if r == nil {
		return -1
	}
	return slices.IndexFunc(r.Users, func(u UserRecord) bool {
		return u.Username == username
	})
}

// Lookup returns a copy of the first record with the given username.
func (r *UserRegistry) Lookup(username string) (UserRecord, bool) {
	i := r.Find(username)
	if i < 0 {
		return UserRecord{}, false
	}
	return r.Users[i], true
}

// RoleTable returns the effective role table.
func (r *UserRegistry) RoleTable() map[string]RoleRights {
	if r == nil || r.Roles == nil {
		return DefaultRoles()
	}
	return r.Roles
}

// EnsureRoles materialises the default role table so it can be edited.
func (r *UserRegistry) EnsureRoles() {
	if r.Roles == nil {
		r.Roles = DefaultRoles()
	}
}

// Clone returns a deep copy of the document.
func (r *UserRegistry) Clone() *UserRegistry {
	if r == nil {
		return nil
	}
	c := &UserRegistry{
		Users: slices.Clone(r.Users),
	}
	if c.Users == nil {
		c.Users = []UserRecord{}
	}
	if r.Roles != nil {
		c.Roles = make(map[string]RoleRights, len(r.Roles))
		for name, rights := range r.Roles {
			c.Roles[name] = rights.Clone()
		}
	}
	return c
}

// NewUserRegistry returns an empty registry.
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{Users: []UserRecord{}}
}
