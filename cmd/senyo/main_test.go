package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/internal/config"
	"github.com/danaasamuel2023/senyo-sub001/server"
	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	api *httptest.Server
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV", "DEV")
	t.Setenv("TMPDIR", dir)
	t.Setenv("CREDENTIALS_FILE", dir+"/credentials.json")
	t.Setenv("SENYO_SESSION", "cli-test")
	t.Setenv("REDIS_URL", "")
	t.Setenv(passwordEnvVar, "")

	srv, err := server.New(config.New(), server.NewInMemoryRepos(),
		server.WithLogger(zerolog.Nop()), server.WithRouteLog(io.Discard))
	require.NoError(t, err)
	api := httptest.NewServer(srv)
	t.Cleanup(api.Close)
	return &cliEnv{api: api}
}

func (e *cliEnv) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := rootCmd(config.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api", e.api.URL, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCLI_SignedOutCommandsRedirect(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(context.Background(), "", "whoami")
	var redirect *redirectError
	require.ErrorAs(t, err, &redirect)
	require.Equal(t, "/SignIn", redirect.URL)
	require.Contains(t, out, "-> /SignIn")
	require.Contains(t, redirect.Hint(), "senyo login")
}

func TestCLI_LoginWhoamiDepositLogout(t *testing.T) {
	env := newCLIEnv(t)
	ctx := context.Background()

	out, err := env.run(ctx, server.DemoPassword+"\n", "login", "--email", "user@senyo.local")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Demo Customer (user)")

	out, err = env.run(ctx, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Demo Customer <user@senyo.local>")
	require.Contains(t, out, "GHS 0.00")

	out, err = env.run(ctx, "", "deposit", "15")
	require.NoError(t, err)
	require.Contains(t, out, "new balance GHS 15.00")

	out, err = env.run(ctx, "", "balance")
	require.NoError(t, err)
	require.Contains(t, out, "Wallet balance: GHS 15.00")

	out, err = env.run(ctx, "", "admin", "users")
	var redirect *redirectError
	require.ErrorAs(t, err, &redirect)
	require.Equal(t, "/unauthorized", redirect.URL)
	require.Contains(t, redirect.Hint(), "do not have access")
	require.NotContains(t, out, "EMAIL")

	out, err = env.run(ctx, "", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out")

	_, err = env.run(ctx, "", "whoami")
	require.ErrorAs(t, err, &redirect)
	require.Equal(t, "/SignIn", redirect.URL)
}

func TestCLI_CorruptProfileRedirectsToSignIn(t *testing.T) {
	env := newCLIEnv(t)
	ctx := context.Background()

	_, err := env.run(ctx, "", "login", "-e", "user@senyo.local", "-p", server.DemoPassword)
	require.NoError(t, err)

	path := os.Getenv("CREDENTIALS_FILE")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	values := map[string]string{}
	require.NoError(t, json.Unmarshal(data, &values))
	values[session.KeyUserData] = "{not json"
	data, err = json.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	for _, args := range [][]string{{"whoami"}, {"balance"}, {"balance", "--watch"}} {
		watchCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		_, err := env.run(watchCtx, "", args...)
		cancel()

		var redirect *redirectError
		require.ErrorAs(t, err, &redirect, "%v", args)
		require.Equal(t, "/SignIn", redirect.URL)
	}
}

func TestCLI_LoginRejected(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(context.Background(), "", "login", "--email", "user@senyo.local", "--password", "wrong")
	require.EqualError(t, err, "Invalid email or password")

	_, err = env.run(context.Background(), "", "login")
	require.EqualError(t, err, "--email is required")
}

func TestCLI_AdminUsers(t *testing.T) {
	env := newCLIEnv(t)
	ctx := context.Background()

	_, err := env.run(ctx, "", "login", "-e", "staff@senyo.local", "-p", server.DemoPassword)
	require.NoError(t, err)

	out, err := env.run(ctx, "", "admin", "users")
	require.NoError(t, err)
	require.Contains(t, out, "EMAIL")
	require.Contains(t, out, "agent@senyo.local")
	require.Contains(t, out, "100.00")
}

func TestCLI_BalanceWatchReportsQueuedDeposit(t *testing.T) {
	env := newCLIEnv(t)
	ctx := context.Background()

	_, err := env.run(ctx, "", "login", "-e", "agent@senyo.local", "-p", server.DemoPassword, "--remember")
	require.NoError(t, err)
	_, err = env.run(ctx, "", "deposit", "20")
	require.NoError(t, err)

	watchCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	out, err := env.run(watchCtx, "", "balance", "--watch")
	require.NoError(t, err)
	require.Contains(t, out, "Wallet balance: GHS 120.00")
	require.Contains(t, out, "Watching for deposits")
	require.Contains(t, out, "+GHS 20.00  balance GHS 120.00")
}

func TestCLI_Version(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(context.Background(), "", "version")
	require.NoError(t, err)
	require.Equal(t, "senyo version "+Version+"\n", out)
}
