package token

import (
	"strings"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/token/refresh"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
)

const defaultIssuer = "senyo"

// Claims carried by every access token
type Claims struct {
	Role  users.RoleType `json:"role"`
	Email string         `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Bundle is the body returned by login and refresh.
type Bundle struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	User         users.Profile `json:"user"`
	ExpiresIn    int           `json:"expiresIn"` // seconds
}

type Manager struct {
	signer             Signer
	refresh            *refresh.Manager
	userRepo           users.Repo
	revokedCache       RevokedTokenCache
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(refreshRepo refresh.Repo, userRepo users.Repo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		userRepo:     userRepo,
		revokedCache: NewInMemoryRevokedTokenCache(),
		issuer:       defaultIssuer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	m.refresh = refresh.NewManager(refreshRepo, m.refreshTokenExpiry, m.nowFunc)
	return m
}

// IssueBundle creates an access token and a fresh refresh token for
// account, replacing any refresh token it held.
func (c *Manager) IssueBundle(account *users.Account) (*Bundle, error) {
	accessToken, err := c.CreateAccessToken(account)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.IssueBundle CreateAccessToken")
	}
	refreshToken, err := c.refresh.Create(account.ID)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.IssueBundle CreateRefreshToken")
	}

	return &Bundle{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         account.Profile,
		ExpiresIn:    int(c.accessTokenExpiry.Seconds()),
	}, nil
}

func (c *Manager) CreateAccessToken(account *users.Account) (string, error) {
	now := c.nowFunc()
	claims := Claims{
		Role:  account.Role,
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTokenExpiry)),
			ID:        uuid.New().String(), // jti, for revocation
		},
	}
	return c.signer.Sign(claims)
}

// Refresh exchanges a refresh token for a new bundle. The refresh token is
// rotated: the old one stops working.
func (c *Manager) Refresh(refreshToken string) (*Bundle, error) {
	rt, err := c.refresh.Get(strings.TrimSpace(refreshToken))
	if err != nil {
		return nil, apperrors.ErrInvalidRefreshToken
	}

	if c.refresh.IsExpired(rt) {
		_ = c.refresh.Delete(rt.Token)
		return nil, apperrors.ErrRefreshTokenExpired
	}

	account, err := c.userRepo.GetByID(rt.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "user not found for refresh token")
	}
	if account.Blocked {
		_ = c.refresh.Delete(rt.Token)
		return nil, apperrors.ErrUserBlocked
	}

	return c.IssueBundle(account)
}

// Introspect verifies rawToken and returns its claims.
func (c *Manager) Introspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperrors.ErrTokenExpired
	case err != nil:
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}

	if claims.ID != "" && c.revokedCache.IsRevoked(claims.ID) {
		return nil, apperrors.ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates rawToken and the refresh token of its user. Tokens
// that no longer verify are ignored.
func (c *Manager) Revoke(rawToken string) {
	claims, err := c.Introspect(rawToken)
	if err != nil {
		return
	}
	if claims.ExpiresAt != nil {
		_ = c.revokedCache.Add(claims.ID, claims.ExpiresAt.Time)
	}
	c.refresh.DeleteForUser(claims.Subject)
	c.CleanupRevokedTokens()
}

// CleanupRevokedTokens forgets revocations of tokens that have expired.
func (c *Manager) CleanupRevokedTokens() {
	c.revokedCache.Cleanup(c.nowFunc())
}

// InvalidateRefreshToken removes refreshToken from storage
func (c *Manager) InvalidateRefreshToken(refreshToken string) {
	_ = c.refresh.Delete(refreshToken)
}

func (c *Manager) AccessTokenExpiry() time.Duration {
	return c.accessTokenExpiry
}
