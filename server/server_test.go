package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/internal/clock"
	"github.com/danaasamuel2023/senyo-sub001/internal/config"
	"github.com/danaasamuel2023/senyo-sub001/server"
	"github.com/danaasamuel2023/senyo-sub001/token"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *server.Server
	http   *httptest.Server
	repos  server.Repos
	clock  *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("ENV", "DEV")
	t.Setenv("API_BASE_URL", "http://localhost:5000")
	t.Setenv("JWT_SECRET", "test-secret")

	env := &testEnv{
		repos: server.NewInMemoryRepos(),
		clock: clock.NewFake(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)),
	}
	srv, err := server.New(config.New(), env.repos,
		server.WithNowFunc(env.clock.Now),
		server.WithLogger(zerolog.Nop()),
		server.WithRouteLog(io.Discard),
	)
	require.NoError(t, err)
	env.server = srv
	env.http = httptest.NewServer(srv)
	t.Cleanup(env.http.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, accessToken string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
	}
	return resp, decoded
}

func (e *testEnv) login(t *testing.T, email, password string) *token.Bundle {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(t, err)
	resp, err := http.Post(e.http.URL+server.RouteAuthLogin, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bundle token.Bundle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bundle))
	return &bundle
}

func (e *testEnv) account(t *testing.T, email string) *users.Account {
	t.Helper()
	account, err := e.repos.Users.GetByEmail(email)
	require.NoError(t, err)
	return account
}

const (
	demoUser  = "user@senyo.local"
	demoAgent = "agent@senyo.local"
	demoStaff = "staff@senyo.local"
)

func TestInitialiseSystem(t *testing.T) {
	env := newTestEnv(t)

	password := env.server.GeneratedPassword()
	require.NotEmpty(t, password)

	bundle := env.login(t, "admin@localhost", password)
	require.Equal(t, users.RoleSuperAdmin, bundle.User.Role)

	again, err := server.New(config.New(), env.repos,
		server.WithLogger(zerolog.Nop()), server.WithRouteLog(io.Discard))
	require.NoError(t, err)
	require.Empty(t, again.GeneratedPassword(), "an existing super admin is kept")

	all, err := env.repos.Users.List(0, 100)
	require.NoError(t, err)
	require.Len(t, all, 4, "super admin plus three demo accounts, seeded once")
}

func TestInitialiseSystem_NoDemoAccountsOutsideDev(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	repos := server.NewInMemoryRepos()

	_, err := server.New(config.New(), repos, server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	all, err := repos.Users.List(0, 100)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "admin@api.example.com", all[0].Email)
}

func TestLoginHandler(t *testing.T) {
	env := newTestEnv(t)

	t.Run("success", func(t *testing.T) {
		bundle := env.login(t, demoUser, server.DemoPassword)
		require.NotEmpty(t, bundle.Token)
		require.NotEmpty(t, bundle.RefreshToken)
		require.Equal(t, 3600, bundle.ExpiresIn)
		require.Equal(t, demoUser, bundle.User.Email)
		require.Equal(t, users.RoleUser, bundle.User.Role)
		require.Equal(t, env.clock.Now(), env.account(t, demoUser).LastLogin)
	})

	t.Run("email is case insensitive", func(t *testing.T) {
		bundle := env.login(t, "  USER@senyo.local ", server.DemoPassword)
		require.Equal(t, demoUser, bundle.User.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"email": demoUser, "password": "nope"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "Invalid email or password", body["message"])
		require.Equal(t, false, body["success"])
	})

	t.Run("unknown user", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"email": "ghost@senyo.local", "password": "whatever1"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "Invalid email or password", body["message"])
	})

	t.Run("missing fields", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"email": demoUser})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("blocked", func(t *testing.T) {
		account := env.account(t, demoAgent)
		account.Blocked = true
		require.NoError(t, env.repos.Users.Upsert(account))

		resp, body := env.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"email": demoAgent, "password": server.DemoPassword})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Contains(t, body["message"], "blocked")
	})
}

func TestRefreshHandler(t *testing.T) {
	env := newTestEnv(t)
	first := env.login(t, demoUser, server.DemoPassword)

	resp, body := env.do(t, http.MethodPost, server.RouteAuthRefresh, "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["token"])
	require.NotEqual(t, first.RefreshToken, body["refreshToken"])
	require.EqualValues(t, 3600, body["expiresIn"])

	resp, body = env.do(t, http.MethodPost, server.RouteAuthRefresh, "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid refresh token", body["message"])

	resp, _ = env.do(t, http.MethodPost, server.RouteAuthRefresh, "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshHandler_ExpiredRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.login(t, demoUser, server.DemoPassword)

	env.clock.Advance(8 * 24 * time.Hour)

	resp, body := env.do(t, http.MethodPost, server.RouteAuthRefresh, "", map[string]string{"refreshToken": bundle.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Refresh token expired", body["message"])
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.login(t, demoUser, server.DemoPassword)

	resp, body := env.do(t, http.MethodGet, server.RouteUsersMe, bundle.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]any)
	require.Equal(t, demoUser, user["email"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = env.do(t, http.MethodGet, server.RouteUsersMe, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Authentication required", body["message"])

	resp, body = env.do(t, http.MethodGet, server.RouteUsersMe, "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid token", body["message"])

	env.clock.Advance(61 * time.Minute)
	resp, body = env.do(t, http.MethodGet, server.RouteUsersMe, bundle.Token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Token expired", body["message"])
}

func TestLogoutHandler(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.login(t, demoUser, server.DemoPassword)

	resp, body := env.do(t, http.MethodPost, server.RouteAuthLogout, bundle.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	resp, body = env.do(t, http.MethodGet, server.RouteUsersMe, bundle.Token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Token revoked", body["message"])

	resp, _ = env.do(t, http.MethodPost, server.RouteAuthRefresh, "", map[string]string{"refreshToken": bundle.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, server.RouteAuthLogout, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "logout always succeeds")
}

func TestCleanupRevokedTokens(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.login(t, demoUser, server.DemoPassword)
	resp, _ := env.do(t, http.MethodPost, server.RouteAuthLogout, bundle.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	done := env.server.CleanupRevokedTokens(ctx, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	resp, body := env.do(t, http.MethodGet, server.RouteUsersMe, bundle.Token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Token revoked", body["message"], "live tokens stay revoked")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop with its context")
	}
}

func TestBalanceUpdateHandler(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, demoUser, server.DemoPassword)
	other := env.login(t, demoAgent, server.DemoPassword)
	staff := env.login(t, demoStaff, server.DemoPassword)
	path := "/api/balance-update/" + owner.User.ID

	resp, body := env.do(t, http.MethodGet, path, owner.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, false, body["hasUpdate"])
	require.NotContains(t, body, "data")

	resp, body = env.do(t, http.MethodPost, server.RouteDepositsConfirm, owner.Token, map[string]any{"amount": 12.5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deposit := body["data"].(map[string]any)
	require.EqualValues(t, 12.5, deposit["newBalance"])

	resp, body = env.do(t, http.MethodGet, path, other.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, false, body["success"])

	resp, body = env.do(t, http.MethodGet, path, owner.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["hasUpdate"])
	data := body["data"].(map[string]any)
	require.EqualValues(t, 12.5, data["newBalance"])
	require.EqualValues(t, 12.5, data["amount"])
	require.Equal(t, deposit["reference"], data["reference"])
	require.Equal(t, env.clock.Now().Format(time.RFC3339), data["timestamp"])

	resp, body = env.do(t, http.MethodGet, path, staff.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "admins may read any balance")
	require.Equal(t, false, body["hasUpdate"], "the update was collected once")
}

func TestDepositConfirmHandler(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, demoUser, server.DemoPassword)
	agent := env.login(t, demoAgent, server.DemoPassword)
	staff := env.login(t, demoStaff, server.DemoPassword)

	resp, body := env.do(t, http.MethodPost, server.RouteDepositsConfirm, owner.Token, map[string]any{"amount": 0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Amount must be greater than zero", body["message"])

	resp, _ = env.do(t, http.MethodPost, server.RouteDepositsConfirm, owner.Token, map[string]any{"amount": 5, "userId": agent.User.ID})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, server.RouteDepositsConfirm, staff.Token, map[string]any{"amount": 5, "userId": agent.User.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 105, body["data"].(map[string]any)["newBalance"])
	require.Equal(t, 105.0, env.account(t, demoAgent).WalletBalance)

	resp, _ = env.do(t, http.MethodPost, server.RouteDepositsConfirm, staff.Token, map[string]any{"amount": 5, "userId": "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, server.RouteDepositsConfirm, "", map[string]any{"amount": 5})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminUsersListHandler(t *testing.T) {
	env := newTestEnv(t)
	user := env.login(t, demoUser, server.DemoPassword)
	staff := env.login(t, demoStaff, server.DemoPassword)

	resp, body := env.do(t, http.MethodGet, server.RouteAdminUsers, user.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, false, body["success"])

	resp, body = env.do(t, http.MethodGet, server.RouteAdminUsers, staff.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["users"].([]any)
	require.Len(t, list, 4)
	for _, entry := range list {
		require.NotContains(t, entry.(map[string]any), "PasswordHash")
	}

	resp, body = env.do(t, http.MethodGet, server.RouteAdminUsers+"?offset=3&limit=2", staff.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["users"].([]any), 1)

	resp, body = env.do(t, http.MethodGet, server.RouteAdminUsers+"?offset=50", staff.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body["users"])
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "0.001")
	t.Setenv("RATE_LIMIT_BURST", "1")
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, server.RouteAuthLogout, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, server.RouteAuthLogout, "", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("Retry-After"))
	require.Equal(t, "Too many requests, please slow down", body["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, server.RouteHealth, "", nil)

	resp, err := http.Get(env.http.URL + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `senyo_http_requests_total{method="GET",route="GET /healthz",status="200"}`), string(data))
}
