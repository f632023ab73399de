package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/deposits"
	"github.com/danaasamuel2023/senyo-sub001/internal/config"
	"github.com/danaasamuel2023/senyo-sub001/internal/metrics"
	"github.com/danaasamuel2023/senyo-sub001/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	handler  http.Handler
	routes   []string
	config   config.Config
	repos    Repos
	tokens   *token.Manager
	deposits *deposits.Service
	limiter  *clientLimiter
	logger   zerolog.Logger
	nowFunc  func() time.Time
	routeLog io.Writer

	// Set by InitialiseSystem when a super admin had to be created.
	generatedPassword string
}

type Option func(*Server)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRouteLog sets where DEV route listings are printed.
func WithRouteLog(w io.Writer) Option {
	return func(s *Server) {
		s.routeLog = w
	}
}

func New(cfg config.Config, repos Repos, options ...Option) (*Server, error) {
	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		repos:    repos,
		logger:   log.Logger,
		nowFunc:  time.Now,
		routeLog: os.Stdout,
	}
	for _, opt := range options {
		opt(s)
	}

	s.tokens = token.New(repos.Refresh, repos.Users, token.NewHMACSigner(cfg.GetJWTSecret()),
		token.WithTokenExpiry(cfg.GetAccessTokenTTL(), cfg.GetRefreshTokenTTL()),
		token.WithNowFunc(s.nowFunc),
	)
	s.deposits = deposits.New(repos.Users, repos.Deposits, deposits.WithNowFunc(s.nowFunc))
	s.limiter = newClientLimiter(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst())

	password, err := s.InitialiseSystem()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
	}
	s.generatedPassword = password

	s.initRoutes()
	s.logRoutes()

	// The instrumentation sits outside the mux so it can read the matched
	// pattern after routing.
	s.handler = metrics.InstrumentHandler(s.mux)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// GeneratedPassword returns the super admin password created at start-up,
// or "" when the account already existed.
func (s *Server) GeneratedPassword() string {
	return s.generatedPassword
}

// Tokens exposes the token manager, mainly so tests can mint tokens.
func (s *Server) Tokens() *token.Manager {
	return s.tokens
}

func (s *Server) Deposits() *deposits.Service {
	return s.deposits
}

// CleanupRevokedTokens prunes expired entries from the revocation list every
// interval until ctx is done. The returned channel closes once it stops.
func (s *Server) CleanupRevokedTokens(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tokens.CleanupRevokedTokens()
			}
		}
	}()
	return done
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" || s.routeLog == nil {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	fmt.Fprintf(s.routeLog, "[%-19s] %s\n", displayMethod, path)
}
