package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
	"github.com/danaasamuel2023/senyo-sub001/token"
	"github.com/danaasamuel2023/senyo-sub001/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified access token claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyRequestID stores the request correlation id
	ContextKeyRequestID ContextKey = "request_id"
)

// RequireAuth is middleware that validates a Bearer access token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := s.tokens.Introspect(rawToken)
			switch {
			case apperrors.Is(err, apperrors.ErrTokenExpired):
				writeJSONError(w, http.StatusUnauthorized, "Token expired")
				return
			case apperrors.Is(err, apperrors.ErrTokenRevoked):
				writeJSONError(w, http.StatusUnauthorized, "Token revoked")
				return
			case err != nil:
				writeJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole is middleware that allows only the listed roles. It must be
// chained after RequireAuth.
func (s *Server) RequireRole(roles ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromContext(r.Context())
			if !ok || !hasRole(claims, roles...) {
				writeJSONError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}
			next(w, r)
		}
	}
}

func claimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok && claims != nil
}

func hasRole(claims *token.Claims, roles ...users.RoleType) bool {
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}

func isAdmin(claims *token.Claims) bool {
	return hasRole(claims, users.RoleAdmin, users.RoleSuperAdmin)
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	rawToken := strings.TrimSpace(parts[1])
	return rawToken, rawToken != ""
}
