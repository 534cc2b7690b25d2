package handlers

import (
	"net/http"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/bootstrap"
)

// SystemHandler serves the repair and reset endpoints.
type SystemHandler struct {
	accounts *accounts.Service
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(svc *accounts.Service) *SystemHandler {
	return &SystemHandler{accounts: svc}
}

// BootstrapResponse reports the credential established by a repair or reset.
type BootstrapResponse struct {
	Username  string           `json:"username"`
	Source    bootstrap.Source `json:"source"`
	Persisted bool             `json:"persisted"`

	// GeneratedPassword is returned once, when no default password is
	// configured and a new one had to be created.
	GeneratedPassword string `json:"generated_password,omitempty"`
}

func newBootstrapResponse(res bootstrap.Result) BootstrapResponse {
	return BootstrapResponse{
		Username:          res.Username,
		Source:            res.Source,
		Persisted:         res.Persisted,
		GeneratedPassword: res.GeneratedPassword,
	}
}

// RepairCredentials handles POST /api/v1/credentials/repair.
func (h *SystemHandler) RepairCredentials(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.RepairCredentials(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "Credentials repaired via API", logger.KeySource, string(res.Source))
	WriteJSONOK(w, newBootstrapResponse(res))
}

// FactoryReset handles POST /api/v1/system/factory-reset.
func (h *SystemHandler) FactoryReset(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.FactoryReset(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logger.WarnCtx(r.Context(), "Factory reset performed via API")
	WriteJSONOK(w, newBootstrapResponse(res))
}
