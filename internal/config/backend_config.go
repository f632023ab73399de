package config

import "time"

type BackendConfig interface {
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "senyo-development-secret")
}

func (Backend) GetAccessTokenTTL() time.Duration {
	return GetDurationEnv("ACCESS_TOKEN_TTL", time.Hour)
}

func (Backend) GetRefreshTokenTTL() time.Duration {
	return GetDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour) // 7 days
}

func (Backend) GetRateLimitRPS() float64 {
	return GetFloatEnv("RATE_LIMIT_RPS", 20)
}

func (Backend) GetRateLimitBurst() int {
	return int(GetFloatEnv("RATE_LIMIT_BURST", 40))
}
