package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/warden/pkg/accounts"
	"github.com/marmos91/warden/pkg/api/handlers"
	"github.com/marmos91/warden/pkg/api/problem"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/bootstrap"
	"github.com/marmos91/warden/pkg/credential"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/rights"
	"github.com/marmos91/warden/pkg/store/memory"
)

const adminPassword = "admin-password-1"

type apiFixture struct {
	handler http.Handler
	deps    Dependencies
	svc     *accounts.Service
	mgr     *auth.Manager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	st := memory.New()
	mgr, err := auth.NewManager(ctx, st, auth.Options{Hasher: credential.NewBcryptHasher(4)})
	require.NoError(t, err)

	svc := accounts.New(mgr, st, accounts.NewBootstrapper(mgr, bootstrap.Config{DefaultPassword: adminPassword}))
	_, err = svc.EnsureCredential(ctx)
	require.NoError(t, err)

	deps := Dependencies{
		Manager:  mgr,
		Resolver: rights.NewResolver(st, mgr),
		Accounts: svc,
		Health: func(ctx context.Context) error {
			_, err := st.Load(ctx)
			return err
		},
	}
	return &apiFixture{handler: NewRouter(APIConfig{}, deps), deps: deps, svc: svc, mgr: mgr}
}

func (f *apiFixture) do(t *testing.T, method, path, user, pass string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problem.Problem {
	t.Helper()
	assert.Equal(t, problem.ContentType, w.Header().Get("Content-Type"))
	var p problem.Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	return p
}

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp handlers.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestRouter_MethodsArePublic(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/auth/methods", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.MethodsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, models.MethodLocal, resp.PrimaryMethod)
	assert.Contains(t, resp.AvailableMethods, models.MethodLocal)
}

func TestRouter_Unauthenticated(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/auth/me", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `Basic realm="warden"`)
	assert.Equal(t, http.StatusUnauthorized, decodeProblem(t, w).Status)

	w = f.do(t, http.MethodGet, "/api/v1/auth/me", "admin", "wrong-password", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Me(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/auth/me", "admin", adminPassword, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me handlers.MeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&me))
	assert.Equal(t, "admin", me.Username)
	assert.Equal(t, models.MethodLocal, me.Method)
	assert.Equal(t, models.RoleAdmin, me.Role)
	assert.True(t, me.Rights[models.RightManageConfig])
}

func TestRouter_UserLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/users", "admin", adminPassword,
		handlers.CreateUserRequest{Username: "carol", Role: models.RoleViewer, Password: "carol-password"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/users", "admin", adminPassword,
		handlers.CreateUserRequest{Username: "carol", Role: models.RoleViewer})
	assert.Equal(t, http.StatusConflict, w.Code)

	// A viewer authenticates but lacks manage_config.
	w = f.do(t, http.MethodGet, "/api/v1/users", "carol", "carol-password", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, decodeProblem(t, w).Detail, models.RightManageConfig)

	w = f.do(t, http.MethodPut, "/api/v1/users/carol/role", "admin", adminPassword,
		handlers.SetRoleRequest{Role: models.RoleAdmin})
	require.Equal(t, http.StatusNoContent, w.Code)

	// The role change applies to the next request.
	w = f.do(t, http.MethodGet, "/api/v1/users", "carol", "carol-password", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []accounts.UserSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&users))
	assert.Len(t, users, 2)

	w = f.do(t, http.MethodDelete, "/api/v1/users/carol", "admin", adminPassword, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/auth/me", "carol", "carol-password", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/users/carol", "admin", adminPassword, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CanonicalAdminProtected(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodDelete, "/api/v1/users/admin", "admin", adminPassword, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/users/admin/role", "admin", adminPassword,
		handlers.SetRoleRequest{Role: models.RoleViewer})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_ChangeOwnPassword(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/users/me/password", "admin", adminPassword,
		handlers.PasswordRequest{NewPassword: "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/users/me/password", "admin", adminPassword,
		handlers.PasswordRequest{NewPassword: "brand-new-password"})
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.False(t, f.mgr.Authenticate(context.Background(), "admin", adminPassword))
	assert.True(t, f.mgr.Authenticate(context.Background(), "admin", "brand-new-password"))
}

func TestRouter_Roles(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPut, "/api/v1/roles/auditor", "admin", adminPassword,
		map[string]bool{models.RightViewMetrics: true})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/roles", "admin", adminPassword, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var roles map[string]models.RoleRights
	require.NoError(t, json.NewDecoder(w.Body).Decode(&roles))
	require.Contains(t, roles, "auditor")
	assert.True(t, roles["auditor"][models.RightViewMetrics])
	assert.False(t, roles["auditor"][models.RightManageConfig])

	w = f.do(t, http.MethodPut, "/api/v1/roles/admin", "admin", adminPassword, map[string]bool{})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/roles/auditor", "admin", adminPassword,
		map[string]bool{"launch_missiles": true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/roles/auditor", "admin", adminPassword, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/roles/auditor", "admin", adminPassword, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AuthConfig(t *testing.T) {
	f := newAPIFixture(t)

	cfg := models.AuthConfig{
		PrimaryMethod:   models.MethodDirectory,
		FallbackEnabled: true,
		Directory: models.DirectoryConfig{
			Server:       "127.0.0.1:1",
			BaseDN:       "dc=example,dc=com",
			BindDN:       "cn=svc,dc=example,dc=com",
			BindPassword: "bind-secret",
		},
	}
	w := f.do(t, http.MethodPut, "/api/v1/auth/config", "admin", adminPassword, cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.AuthConfig
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, models.MethodDirectory, got.PrimaryMethod)
	assert.NotContains(t, w.Body.String(), "bind-secret")
	assert.Equal(t, "bind-secret", f.svc.AuthConfig().Directory.BindPassword)

	// Sending the redacted marker back keeps the stored secret.
	// The directory refuses connections, so admin gets in through the
	// local fallback.
	got.Directory.SearchFilter = "(uid={username})"
	w = f.do(t, http.MethodPut, "/api/v1/auth/config", "admin", adminPassword, got)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bind-secret", f.svc.AuthConfig().Directory.BindPassword)
	assert.Equal(t, "(uid={username})", f.svc.AuthConfig().Directory.SearchFilter)

	cfg.Directory.UserDNTemplate = "uid=nobody"
	w = f.do(t, http.MethodPut, "/api/v1/auth/config", "admin", adminPassword, cfg)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouter_InvalidBody(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewBufferString("{not json"))
	req.SetBasicAuth("admin", adminPassword)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RepairAndFactoryReset(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/credentials/repair", "admin", adminPassword, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res handlers.BootstrapResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "admin", res.Username)
	assert.Empty(t, res.GeneratedPassword)

	w = f.do(t, http.MethodPost, "/api/v1/users", "admin", adminPassword,
		handlers.CreateUserRequest{Username: "op", Role: models.RoleOperator, Password: "operator-pass"})
	require.Equal(t, http.StatusCreated, w.Code)

	// operator holds manage_service but not manage_config.
	w = f.do(t, http.MethodPost, "/api/v1/credentials/repair", "op", "operator-pass", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/system/factory-reset", "op", "operator-pass", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The registry is wiped; only the canonical admin remains.
	w = f.do(t, http.MethodGet, "/api/v1/auth/me", "op", "operator-pass", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, f.mgr.Authenticate(context.Background(), "admin", adminPassword))
}

func TestRouter_ReadinessFailure(t *testing.T) {
	f := newAPIFixture(t)
	deps := Dependencies{
		Manager: f.mgr,
		Health:  func(context.Context) error { return errors.New("disk gone") },
	}
	handler := NewRouter(APIConfig{}, deps)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("warden_up 1\n"))
	})
	handler := NewRouter(APIConfig{}, Dependencies{Manager: f.mgr, MetricsHandler: metricsHandler})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "warden_up")
}
