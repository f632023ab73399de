package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin   = "/api/auth/login"
	RouteAuthRefresh = "/api/auth/refresh"
	RouteAuthLogout  = "/api/auth/logout"

	// Wallet Routes
	RouteBalanceUpdate   = "/api/balance-update/{userId}"
	RouteDepositsConfirm = "/api/deposits/confirm"

	// User Routes
	RouteUsersMe    = "/api/users/me"
	RouteAdminUsers = "/api/admin/users"

	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
