// Package client is the authenticated HTTP pipeline in front of the resale
// API. It attaches the session's bearer token, refreshes it when it has
// expired or the server rejects it, and logs the session out when that
// fails.
package client

import (
	"net/http"
	"strings"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	LoginPath          = "/api/auth/login"
	RefreshPath        = "/api/auth/refresh"
	LogoutPath         = "/api/auth/logout"
	DefaultSignInPath  = "/SignIn"
	refreshTimeout     = 10 * time.Second
	maxErrorBodyBytes  = 64 << 10
	refreshFlightGroup = "refresh"
)

type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        *session.Manager
	logger         zerolog.Logger
	signInPath     string
	requestTimeout time.Duration
	dedupRefresh   bool
	refreshes      singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSignInPath sets where forced logouts navigate to.
func WithSignInPath(path string) Option {
	return func(c *Client) {
		c.signInPath = path
	}
}

// WithRequestTimeout sets the default per-request timeout. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithRefreshDedup controls whether concurrent refreshes share one backend
// call. It is on by default.
func WithRefreshDedup(enabled bool) Option {
	return func(c *Client) {
		c.dedupRefresh = enabled
	}
}

// New returns a Client for the API at baseURL, acting for the session held
// by manager.
func New(baseURL string, manager *session.Manager, options ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   http.DefaultClient,
		session:      manager,
		logger:       zerolog.Nop(),
		signInPath:   DefaultSignInPath,
		dedupRefresh: true,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
