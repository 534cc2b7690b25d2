package handlers

import (
	"net/http"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/api/middleware"
	"github.com/marmos91/warden/pkg/api/problem"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/rights"
)

// redactedSecret replaces the directory bind password in responses.
const redactedSecret = "********"

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	mgr      *auth.Manager
	resolver *rights.Resolver
	accounts *accounts.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(mgr *auth.Manager, resolver *rights.Resolver, svc *accounts.Service) *AuthHandler {
	return &AuthHandler{mgr: mgr, resolver: resolver, accounts: svc}
}

// MethodsResponse describes the configured and usable methods.
type MethodsResponse struct {
	PrimaryMethod    models.Method   `json:"primary_method"`
	FallbackEnabled  bool            `json:"fallback_enabled"`
	AvailableMethods []models.Method `json:"available_methods"`
}

// Methods handles GET /api/v1/auth/methods.
func (h *AuthHandler) Methods(w http.ResponseWriter, r *http.Request) {
	cfg := h.mgr.Config()
	WriteJSONOK(w, MethodsResponse{
		PrimaryMethod:    cfg.PrimaryMethod,
		FallbackEnabled:  cfg.FallbackEnabled,
		AvailableMethods: h.mgr.AvailableMethods(),
	})
}

// MeResponse describes the caller.
type MeResponse struct {
	Username string            `json:"username"`
	Method   models.Method     `json:"method"`
	Fallback bool              `json:"fallback"`
	Role     string            `json:"role"`
	Rights   models.RoleRights `json:"rights"`
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		problem.Unauthorized(w, "Authentication required")
		return
	}

	role, granted, err := h.resolver.Rights(r.Context(), p.Username)
	if err != nil {
		logger.WarnCtx(r.Context(), "Failed to resolve rights", logger.Err(err))
		problem.InternalServerError(w, "Failed to resolve rights")
		return
	}

	WriteJSONOK(w, MeResponse{
		Username: p.Username,
		Method:   p.Method,
		Fallback: p.Fallback,
		Role:     role,
		Rights:   granted,
	})
}

// GetConfig handles GET /api/v1/auth/config.
func (h *AuthHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, redactAuthConfig(h.accounts.AuthConfig()))
}

// PutConfig handles PUT /api/v1/auth/config.
//
// The body replaces the whole authentication configuration. A bind password
// equal to the redaction marker keeps the stored one.
func (h *AuthHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var req models.AuthConfig
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Directory.BindPassword == redactedSecret {
		req.Directory.BindPassword = h.accounts.AuthConfig().Directory.BindPassword
	}

	if err := h.accounts.SetAuthConfig(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "Authentication configuration changed via API",
		logger.AuthMethod(req.Normalized().PrimaryMethod.String()))
	WriteJSONOK(w, redactAuthConfig(h.accounts.AuthConfig()))
}

func redactAuthConfig(cfg models.AuthConfig) models.AuthConfig {
	if cfg.Directory.BindPassword != "" {
		cfg.Directory.BindPassword = redactedSecret
	}
	return cfg
}
