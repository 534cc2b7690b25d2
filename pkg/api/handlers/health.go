package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck reports whether the credential store can be read and holds a
// usable admin credential.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles the unauthenticated health endpoints.
type HealthHandler struct {
	check HealthCheck
}

// NewHealthHandler creates a health handler. check may be nil, in which case
// readiness always fails.
func NewHealthHandler(check HealthCheck) *HealthHandler {
	return &HealthHandler{check: check}
}

// Liveness handles GET /health.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "warden",
	}))
}

// StoreHealth is the readiness payload.
type StoreHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
}

// Readiness handles GET /health/ready.
//
// Returns 200 OK when the check passes within five seconds, 503 Service
// Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.check == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.check(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	WriteJSON(w, http.StatusOK, healthyResponse(StoreHealth{
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}))
}
