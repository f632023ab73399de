package config

import (
	"net"
	"os"
	"strings"
	"time"
)

const (
	apiBaseURLEnvVar = "API_BASE_URL"
	appHostEnvVar    = "APP_HOST"

	DevelopmentBaseURL = "http://localhost:5000"
	ProductionBaseURL  = "https://api.senyodata.com"
)

type APIConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// GetBaseURL returns API_BASE_URL when set. Otherwise the host name picks
// the development or the production backend.
func (API) GetBaseURL() string {
	if override := os.Getenv(apiBaseURLEnvVar); override != "" {
		return strings.TrimRight(override, "/")
	}
	host := os.Getenv(appHostEnvVar)
	if host == "" {
		host, _ = os.Hostname()
	}
	return ResolveBaseURL(host)
}

func (API) GetRequestTimeout() time.Duration {
	return GetDurationEnv("REQUEST_TIMEOUT", 30*time.Second)
}

// ResolveBaseURL maps a host name to a backend base URL.
func ResolveBaseURL(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	switch host {
	case "localhost", "127.0.0.1", "[::1]", "::1":
		return DevelopmentBaseURL
	default:
		return ProductionBaseURL
	}
}
