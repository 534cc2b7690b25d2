package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/auth"
	"github.com/marmos91/warden/pkg/models"
)

type fakeAuthenticator map[string]string

func (f fakeAuthenticator) Attempt(_ context.Context, username, password string) auth.Result {
	pw, ok := f[username]
	return auth.Result{OK: ok && pw == password, Method: models.MethodLocal}
}

type fakeChecker map[string][]string

func (f fakeChecker) HasRight(_ context.Context, username, right string) bool {
	for _, r := range f[username] {
		if r == right {
			return true
		}
	}
	return false
}

type recordingMetrics struct {
	mu        sync.Mutex
	decisions map[string]bool
	routes    []string
}

func (m *recordingMetrics) ObserveRequest(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, method+" "+route)
}

func (m *recordingMetrics) RecordAuthorization(right string, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decisions == nil {
		m.decisions = map[string]bool{}
	}
	m.decisions[right] = allowed
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipal(r.Context())
		require.NotNil(t, p)
		_, _ = w.Write([]byte(p.Username))
	})
}

func TestBasicAuth(t *testing.T) {
	h := BasicAuth(fakeAuthenticator{"alice": "pw"}, "ops")(okHandler(t))

	tests := []struct {
		name     string
		user     string
		pass     string
		noHeader bool
		want     int
	}{
		{name: "valid", user: "alice", pass: "pw", want: http.StatusOK},
		{name: "wrong password", user: "alice", pass: "nope", want: http.StatusUnauthorized},
		{name: "unknown user", user: "bob", pass: "pw", want: http.StatusUnauthorized},
		{name: "empty username", user: "", pass: "pw", want: http.StatusUnauthorized},
		{name: "no header", noHeader: true, want: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if !tc.noHeader {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="ops", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
				assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			} else {
				assert.Equal(t, "alice", w.Body.String())
			}
		})
	}
}

func TestBasicAuth_EnrichesLogContext(t *testing.T) {
	var seen *logger.LogContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.FromContext(r.Context())
	})
	h := BasicAuth(fakeAuthenticator{"alice": "pw"}, "warden")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithContext(req.Context(), logger.NewLogContext("req-1", "10.0.0.1")))
	req.SetBasicAuth("alice", "pw")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
	assert.Equal(t, "local", seen.AuthMethod)
	assert.Equal(t, "req-1", seen.RequestID)
}

func TestRequireRight(t *testing.T) {
	checker := fakeChecker{"alice": {models.RightManageConfig}}
	m := &recordingMetrics{}

	guard := func(right string) http.Handler {
		return BasicAuth(fakeAuthenticator{"alice": "pw", "bob": "pw"}, "warden")(
			RequireRight(checker, right, m)(okHandler(t)))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "pw")
	w := httptest.NewRecorder()
	guard(models.RightManageConfig).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, m.decisions[models.RightManageConfig])

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("bob", "pw")
	w = httptest.NewRecorder()
	guard(models.RightManageConfig).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), models.RightManageConfig)
	assert.False(t, m.decisions[models.RightManageConfig])
}

func TestRequireRight_WithoutPrincipal(t *testing.T) {
	h := RequireRight(fakeChecker{}, models.RightManageConfig, nil)(http.NotFoundHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetrics_RoutePattern(t *testing.T) {
	m := &recordingMetrics{}
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))

	assert.Equal(t, []string{"POST unmatched"}, m.routes)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestMetrics_NilIsPassthrough(t *testing.T) {
	next := http.NotFoundHandler()
	h := Metrics(nil)(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogContext(t *testing.T) {
	var seen *logger.LogContext
	h := LogContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "192.0.2.7", seen.ClientIP)
}
