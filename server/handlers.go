package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes the {success:false, message} body the client reads
// error messages from.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "decoding body: %v", err)
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler exchanges an email and password for an auth bundle
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		account, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || !account.CheckPassword(req.Password) {
			// Don't reveal if user exists or not
			writeJSONError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		if account.Blocked {
			writeJSONError(w, http.StatusForbidden, "Account is blocked. Contact support.")
			return
		}

		account.LastLogin = s.nowFunc().UTC()
		if err := s.repos.Users.Upsert(account); err != nil {
			s.logger.Warn().Err(err).Str("userId", account.ID).Msg("failed to record last login")
		}

		bundle, err := s.tokens.IssueBundle(account)
		if err != nil {
			s.logger.Error().Err(err).Str("userId", account.ID).Msg("failed to issue tokens")
			writeJSONError(w, http.StatusInternalServerError, "Login failed")
			return
		}
		s.logger.Info().Str("userId", account.ID).Str("role", string(account.Role)).Msg("user signed in")
		writeJSON(w, http.StatusOK, bundle)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshHandler rotates a refresh token into a new auth bundle
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
			writeJSONError(w, http.StatusBadRequest, "refreshToken is required")
			return
		}

		bundle, err := s.tokens.Refresh(req.RefreshToken)
		switch {
		case apperrors.Is(err, apperrors.ErrRefreshTokenExpired):
			writeJSONError(w, http.StatusUnauthorized, "Refresh token expired")
			return
		case apperrors.Is(err, apperrors.ErrUserBlocked):
			writeJSONError(w, http.StatusForbidden, "Account is blocked. Contact support.")
			return
		case err != nil:
			s.logger.Debug().Err(err).Msg("refresh rejected")
			writeJSONError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		writeJSON(w, http.StatusOK, bundle)
	}
}

// LogoutHandler revokes the presented access token. It always succeeds so
// that a client can discard its session regardless.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rawToken, ok := bearerToken(r); ok {
			s.tokens.Revoke(rawToken)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Logged out",
		})
	}
}

// MeHandler returns the caller's current profile
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFromContext(r.Context())
		account, err := s.repos.Users.GetByID(claims.Subject)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    account.Profile,
		})
	}
}
