package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/models"
)

// RoleHandler serves the role table endpoints.
type RoleHandler struct {
	accounts *accounts.Service
}

// NewRoleHandler creates a role handler.
func NewRoleHandler(svc *accounts.Service) *RoleHandler {
	return &RoleHandler{accounts: svc}
}

// List handles GET /api/v1/roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.accounts.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, roles)
}

// Put handles PUT /api/v1/roles/{name}. The body maps rights to grants;
// rights left out are denied.
func (h *RoleHandler) Put(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var grants models.RoleRights
	if !decodeJSONBody(w, r, &grants) {
		return
	}

	if err := h.accounts.PutRole(r.Context(), name, grants); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "Role updated via API", logger.Role(name))
	WriteNoContent(w)
}

// Delete handles DELETE /api/v1/roles/{name}.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.accounts.DeleteRole(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "Role deleted via API", logger.Role(name))
	WriteNoContent(w)
}
