package server

import (
	"net/http"

	"github.com/danaasamuel2023/senyo-sub001/internal/metrics"
	"github.com/danaasamuel2023/senyo-sub001/users"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// WALLET
	s.RegisterRouteHandler("GET "+RouteBalanceUpdate, ChainMiddleware(s.BalanceUpdateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteDepositsConfirm, ChainMiddleware(s.DepositConfirmHandler(), s.APIMiddleware(s.RequireAuth())...))

	// USERS
	s.RegisterRouteHandler("GET "+RouteUsersMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteAdminUsers, ChainMiddleware(s.AdminUsersListHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RequireRole(users.RoleAdmin, users.RoleSuperAdmin))...))

	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
}
