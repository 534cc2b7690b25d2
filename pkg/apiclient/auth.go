package apiclient

import (
	"context"

	"github.com/marmos91/warden/pkg/models"
)

// Methods describes the configured authentication methods.
type Methods struct {
	PrimaryMethod    models.Method   `json:"primary_method"`
	FallbackEnabled  bool            `json:"fallback_enabled"`
	AvailableMethods []models.Method `json:"available_methods"`
}

// Principal is the caller as seen by the server.
type Principal struct {
	Username string            `json:"username"`
	Method   models.Method     `json:"method"`
	Fallback bool              `json:"fallback"`
	Role     string            `json:"role"`
	Rights   models.RoleRights `json:"rights"`
}

// Methods returns the authentication methods. It needs no credentials.
func (c *Client) Methods(ctx context.Context) (*Methods, error) {
	return getResource[Methods](ctx, c, "/api/v1/auth/methods")
}

// Me returns the authenticated caller with its role and rights.
func (c *Client) Me(ctx context.Context) (*Principal, error) {
	return getResource[Principal](ctx, c, "/api/v1/auth/me")
}

// AuthConfig returns the authentication settings with secrets redacted.
func (c *Client) AuthConfig(ctx context.Context) (*models.AuthConfig, error) {
	return getResource[models.AuthConfig](ctx, c, "/api/v1/auth/config")
}

// SetAuthConfig replaces the authentication settings. Sending back the
// redacted bind password keeps the stored one.
func (c *Client) SetAuthConfig(ctx context.Context, cfg models.AuthConfig) (*models.AuthConfig, error) {
	var result models.AuthConfig
	if err := c.put(ctx, "/api/v1/auth/config", cfg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
