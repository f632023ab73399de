package config_test

import (
	"testing"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/internal/config"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseURL(t *testing.T) {
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("localhost"))
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("LOCALHOST:3000"))
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("127.0.0.1"))
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("::1"))
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("[::1]"))
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("[::1]:5173"))
	require.Equal(t, config.DevelopmentBaseURL, config.ResolveBaseURL("127.0.0.1:8080"))
	require.Equal(t, config.ProductionBaseURL, config.ResolveBaseURL("shop.senyodata.com"))
	require.Equal(t, config.ProductionBaseURL, config.ResolveBaseURL(""))
}

func TestAPI_GetBaseURL(t *testing.T) {
	t.Run("override wins", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://127.0.0.1:9999/")
		t.Setenv("APP_HOST", "localhost")
		require.Equal(t, "http://127.0.0.1:9999", config.API{}.GetBaseURL())
	})

	t.Run("host sniffing", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "")
		t.Setenv("APP_HOST", "localhost")
		require.Equal(t, config.DevelopmentBaseURL, config.API{}.GetBaseURL())

		t.Setenv("APP_HOST", "senyodata.com")
		require.Equal(t, config.ProductionBaseURL, config.API{}.GetBaseURL())
	})
}

func TestSession_Defaults(t *testing.T) {
	t.Setenv("SESSION_TIMEOUT", "")
	t.Setenv("SESSION_WARNING", "not-a-duration")
	t.Setenv("BALANCE_POLL_INTERVAL", "3s")

	s := config.Session{}
	require.Equal(t, 30*time.Minute, s.GetSessionTimeout())
	require.Equal(t, 5*time.Minute, s.GetSessionWarning())
	require.Equal(t, 3*time.Second, s.GetBalancePollInterval())
}

func TestEnvVars_GetPort(t *testing.T) {
	t.Setenv("PORT", "8080")
	require.Equal(t, ":8080", config.EnvVars{}.GetPort())

	t.Setenv("PORT", ":9090")
	require.Equal(t, ":9090", config.EnvVars{}.GetPort())
}

func TestStorage_SessionIDOverride(t *testing.T) {
	t.Setenv("SENYO_SESSION", "tab-7")
	require.Equal(t, "tab-7", config.Storage{}.GetSessionID())
	require.Contains(t, config.Storage{}.GetSessionFlagFile(), "tab-7.json")
}
