package apiclient

import "context"

// User is a registry record without its hash.
type User struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	HasPassword bool   `json:"has_password"`
	Canonical   bool   `json:"canonical"`
}

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type passwordRequest struct {
	NewPassword string `json:"new_password"`
}

// ListUsers returns every registry record.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return listResources[User](ctx, c, "/api/v1/users")
}

// CreateUser adds a user.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := c.post(ctx, "/api/v1/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetRole assigns role to username.
func (c *Client) SetRole(ctx context.Context, username, role string) error {
	return c.put(ctx, resourcePath("/api/v1/users/%s/role", username), setRoleRequest{Role: role}, nil)
}

// SetPassword sets another user's password.
func (c *Client) SetPassword(ctx context.Context, username, password string) error {
	return c.put(ctx, resourcePath("/api/v1/users/%s/password", username), passwordRequest{NewPassword: password}, nil)
}

// ChangeOwnPassword changes the caller's password. Later calls must use the
// new password.
func (c *Client) ChangeOwnPassword(ctx context.Context, password string) error {
	return c.post(ctx, "/api/v1/users/me/password", passwordRequest{NewPassword: password}, nil)
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return c.delete(ctx, resourcePath("/api/v1/users/%s", username))
}
