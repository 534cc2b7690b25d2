// Package handlers provides the HTTP handlers of the Warden admin API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/api/problem"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

// Response is the envelope of the health endpoints.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(errMsg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSONBody decodes a JSON request body into v. On failure it writes
// 400 and returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		problem.BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// writeError maps a service error to a problem response.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		problem.NotFound(w, "User not found")
	case errors.Is(err, models.ErrRoleNotFound):
		problem.NotFound(w, "Role not found")
	case errors.Is(err, models.ErrDuplicateUser):
		problem.Conflict(w, "User already exists")
	case errors.Is(err, accounts.ErrCannotDeleteCanonical),
		errors.Is(err, accounts.ErrCanonicalAdminRole),
		errors.Is(err, accounts.ErrProtectedRole):
		problem.Conflict(w, err.Error())
	case errors.Is(err, models.ErrInvalidUser),
		errors.Is(err, models.ErrInvalidRole),
		errors.Is(err, models.ErrInvalidAuthConfig),
		errors.Is(err, credential.ErrPasswordTooShort),
		errors.Is(err, credential.ErrPasswordTooLong):
		problem.UnprocessableEntity(w, err.Error())
	case errors.Is(err, store.ErrConflict):
		problem.Conflict(w, "Concurrent modification, retry the request")
	case errors.Is(err, store.ErrPartialCommit):
		problem.InternalServerError(w, "Credential documents may be inconsistent; run a credential repair")
	default:
		problem.InternalServerError(w, "Failed to persist the change")
	}
}
