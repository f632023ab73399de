package server

import (
	"net/http"

	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
)

// BalanceUpdateHandler reports the oldest balance change the user has not
// collected yet. Only the owner or an admin may ask.
func (s *Server) BalanceUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFromContext(r.Context())
		userID := r.PathValue("userId")
		if claims.Subject != userID && !isAdmin(claims) {
			writeJSONError(w, http.StatusForbidden, "You can only view your own balance")
			return
		}

		update, ok, err := s.deposits.Next(userID)
		if err != nil {
			s.logger.Error().Err(err).Str("userId", userID).Msg("failed to read balance updates")
			writeJSONError(w, http.StatusInternalServerError, "Failed to check balance")
			return
		}

		body := map[string]any{"success": true, "hasUpdate": ok}
		if ok {
			body["data"] = update
		}
		writeJSON(w, http.StatusOK, body)
	}
}

type depositRequest struct {
	Amount float64 `json:"amount"`
	// UserID lets an admin credit another wallet; others credit their own.
	UserID string `json:"userId,omitempty"`
}

// DepositConfirmHandler stands in for the mobile-money callback: it credits
// the wallet and queues the update the balance poller will pick up.
func (s *Server) DepositConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFromContext(r.Context())

		var req depositRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		userID := claims.Subject
		if req.UserID != "" && req.UserID != userID {
			if !isAdmin(claims) {
				writeJSONError(w, http.StatusForbidden, "You can only top up your own wallet")
				return
			}
			userID = req.UserID
		}

		update, err := s.deposits.Confirm(userID, req.Amount)
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidAmount):
			writeJSONError(w, http.StatusBadRequest, "Amount must be greater than zero")
			return
		case apperrors.Is(err, apperrors.ErrUserNotFound):
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		case err != nil:
			s.logger.Error().Err(err).Str("userId", userID).Msg("deposit failed")
			writeJSONError(w, http.StatusInternalServerError, "Deposit failed")
			return
		}

		s.logger.Info().Str("userId", userID).Float64("amount", req.Amount).Str("reference", update.Reference).Msg("deposit confirmed")
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    update,
		})
	}
}
