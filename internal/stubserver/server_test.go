package stubserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-ledger-client/internal/config"
	"go-ledger-client/internal/model"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		ServerPort:       "0",
		JWTSecret:        "test-secret",
		JWTAccessTTL:     time.Minute,
		JWTRefreshTTL:    time.Hour,
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
		UsersFile:        filepath.Join(t.TempDir(), "users.json"),
	}
	if mutate != nil {
		mutate(cfg)
	}

	handler, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, token string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getWithToken(t *testing.T, url string, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func login(t *testing.T, server *httptest.Server, username string, password string) model.LoginResponse {
	t.Helper()

	resp := postJSON(t, server.URL+"/api/auth/login", "", model.LoginRequest{Username: username, Password: password})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out model.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_LoginIssuesTokenPair(t *testing.T) {
	server := newTestServer(t, nil)

	out := login(t, server, "admin", "admin123")
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEmpty(t, out.RefreshToken)
	assert.Equal(t, "admin", out.User.Username)
	assert.Equal(t, "Administrator", out.User.RoleName)
}

func TestServer_LoginRejectsBadPassword(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postJSON(t, server.URL+"/api/auth/login", "", model.LoginRequest{Username: "admin", Password: "nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Invalid username or password", body["message"])
}

func TestServer_LoginValidatesInput(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postJSON(t, server.URL+"/api/auth/login", "", model.LoginRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Errors, "username")
	assert.Contains(t, body.Errors, "password")
}

func TestServer_RefreshIssuesNewAccessToken(t *testing.T) {
	server := newTestServer(t, nil)
	out := login(t, server, "accountant", "admin123")

	resp := postJSON(t, server.URL+"/api/auth/refresh", "", model.RefreshRequest{RefreshToken: out.RefreshToken})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed model.RefreshResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	// The new access token works against a protected route.
	me := getWithToken(t, server.URL+"/api/auth/me", refreshed.AccessToken)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestServer_RefreshRejectsRevokedToken(t *testing.T) {
	server := newTestServer(t, nil)
	out := login(t, server, "accountant", "admin123")

	logout := postJSON(t, server.URL+"/api/auth/logout", out.AccessToken, nil)
	logout.Body.Close()
	require.Equal(t, http.StatusNoContent, logout.StatusCode)

	resp := postJSON(t, server.URL+"/api/auth/refresh", "", model.RefreshRequest{RefreshToken: out.RefreshToken})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_RefreshRejectsAccessToken(t *testing.T) {
	server := newTestServer(t, nil)
	out := login(t, server, "accountant", "admin123")

	// An access token must not pass as a refresh token.
	resp := postJSON(t, server.URL+"/api/auth/refresh", "", model.RefreshRequest{RefreshToken: out.AccessToken})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_MeRequiresToken(t *testing.T) {
	server := newTestServer(t, nil)

	resp := getWithToken(t, server.URL+"/api/auth/me", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = getWithToken(t, server.URL+"/api/auth/me", "garbage")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_ChangePassword(t *testing.T) {
	server := newTestServer(t, nil)
	out := login(t, server, "clerk", "admin123")

	short := postJSON(t, server.URL+"/api/auth/change-password", out.AccessToken,
		model.ChangePasswordRequest{CurrentPassword: "admin123", NewPassword: "short"})
	short.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, short.StatusCode)

	wrong := postJSON(t, server.URL+"/api/auth/change-password", out.AccessToken,
		model.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "longenough"})
	wrong.Body.Close()
	assert.Equal(t, http.StatusBadRequest, wrong.StatusCode)

	ok := postJSON(t, server.URL+"/api/auth/change-password", out.AccessToken,
		model.ChangePasswordRequest{CurrentPassword: "admin123", NewPassword: "longenough"})
	ok.Body.Close()
	require.Equal(t, http.StatusNoContent, ok.StatusCode)

	// Old password no longer works, new one does.
	resp := postJSON(t, server.URL+"/api/auth/login", "", model.LoginRequest{Username: "clerk", Password: "admin123"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	login(t, server, "clerk", "longenough")
}

func TestServer_PermissionGating(t *testing.T) {
	permsFile := filepath.Join(t.TempDir(), "perms.json")
	require.NoError(t, os.WriteFile(permsFile, []byte(`{"Auditor": ["journal_read"]}`), 0o644))

	server := newTestServer(t, func(cfg *config.Config) {
		cfg.PermissionsFile = permsFile
	})
	out := login(t, server, "auditor", "admin123")

	allowed := getWithToken(t, server.URL+"/api/journal-entries", out.AccessToken)
	allowed.Body.Close()
	assert.Equal(t, http.StatusOK, allowed.StatusCode)

	denied := getWithToken(t, server.URL+"/api/accounts", out.AccessToken)
	denied.Body.Close()
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)
}
