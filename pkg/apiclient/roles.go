package apiclient

import (
	"context"

	"github.com/marmos91/warden/pkg/models"
)

// ListRoles returns the effective role table.
func (c *Client) ListRoles(ctx context.Context) (map[string]models.RoleRights, error) {
	var roles map[string]models.RoleRights
	if err := c.get(ctx, "/api/v1/roles", &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// PutRole creates or replaces a role. Rights not named are denied.
func (c *Client) PutRole(ctx context.Context, name string, rights models.RoleRights) error {
	return c.put(ctx, resourcePath("/api/v1/roles/%s", name), rights, nil)
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	return c.delete(ctx, resourcePath("/api/v1/roles/%s", name))
}
