package apiclient

import (
	"context"
	"encoding/json"
	"time"
)

// Health is the envelope of the health endpoints.
type Health struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Healthy reports whether the server answered "healthy".
func (h *Health) Healthy() bool { return h.Status == "healthy" }

// BootstrapResult reports a repair or a factory reset.
type BootstrapResult struct {
	Username          string `json:"username"`
	Source            string `json:"source"`
	Persisted         bool   `json:"persisted"`
	GeneratedPassword string `json:"generated_password,omitempty"`
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	return getResource[Health](ctx, c, "/health")
}

// Ready checks that the credential store answers. An unready server yields
// an *APIError with status 503.
func (c *Client) Ready(ctx context.Context) (*Health, error) {
	return getResource[Health](ctx, c, "/health/ready")
}

// RepairCredentials re-runs bootstrap on the server.
func (c *Client) RepairCredentials(ctx context.Context) (*BootstrapResult, error) {
	var res BootstrapResult
	if err := c.post(ctx, "/api/v1/credentials/repair", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FactoryReset wipes users, roles and authentication settings on the server.
func (c *Client) FactoryReset(ctx context.Context) (*BootstrapResult, error) {
	var res BootstrapResult
	if err := c.post(ctx, "/api/v1/system/factory-reset", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
