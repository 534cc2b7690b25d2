package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/api/middleware"
	"github.com/marmos91/warden/pkg/api/problem"
)

// UserHandler serves the user registry endpoints.
type UserHandler struct {
	accounts *accounts.Service
}

// NewUserHandler creates a user handler.
func NewUserHandler(svc *accounts.Service) *UserHandler {
	return &UserHandler{accounts: svc}
}

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`

	// Password is optional. Users without one can only sign in through the
	// directory or the host.
	Password string `json:"password,omitempty"`
}

// SetRoleRequest is the body of PUT /api/v1/users/{username}/role.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// PasswordRequest is the body of the password endpoints.
type PasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, users)
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Role == "" {
		problem.BadRequest(w, "username and role are required")
		return
	}

	if err := h.accounts.CreateUser(r.Context(), req.Username, req.Role, req.Password); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "User created via API", "target", req.Username, logger.Role(req.Role))
	WriteJSONCreated(w, accounts.UserSummary{
		Username:    req.Username,
		Role:        req.Role,
		HasPassword: req.Password != "",
	})
}

// SetRole handles PUT /api/v1/users/{username}/role.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req SetRoleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Role == "" {
		problem.BadRequest(w, "role is required")
		return
	}

	if err := h.accounts.AssignRole(r.Context(), username, req.Role); err != nil {
		writeError(w, err)
		return
	}
	WriteNoContent(w)
}

// SetPassword handles PUT /api/v1/users/{username}/password.
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	h.changePassword(w, r, chi.URLParam(r, "username"))
}

// Delete handles DELETE /api/v1/users/{username}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.accounts.DeleteUser(r.Context(), username); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "User deleted via API", "target", username)
	WriteNoContent(w)
}

// ChangeOwnPassword handles POST /api/v1/users/me/password.
//
// Any authenticated caller may change their own local password. Directory
// and host principals have no local password to change.
func (h *UserHandler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		problem.Unauthorized(w, "Authentication required")
		return
	}
	h.changePassword(w, r, p.Username)
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request, username string) {
	var req PasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), username, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "Password changed via API", "target", username)
	WriteNoContent(w)
}
