package server

import (
	"net/http"
	"strconv"

	"github.com/danaasamuel2023/senyo-sub001/users"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// AdminUsersListHandler lists accounts, paged by offset and limit
func (s *Server) AdminUsersListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultPageSize)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}

		accounts, err := s.repos.Users.List(offset, limit)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to list users")
			writeJSONError(w, http.StatusInternalServerError, "Failed to list users")
			return
		}
		if accounts == nil {
			accounts = []*users.Account{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"users":   accounts,
			"offset":  offset,
			"limit":   limit,
		})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return value
}
