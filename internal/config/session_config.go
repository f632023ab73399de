package config

import "time"

type SessionConfig interface {
	GetSessionTimeout() time.Duration
	GetSessionWarning() time.Duration
	GetBalancePollInterval() time.Duration
	GetSignInPath() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionTimeout() time.Duration {
	return GetDurationEnv("SESSION_TIMEOUT", 30*time.Minute)
}

func (Session) GetSessionWarning() time.Duration {
	return GetDurationEnv("SESSION_WARNING", 5*time.Minute)
}

func (Session) GetBalancePollInterval() time.Duration {
	return GetDurationEnv("BALANCE_POLL_INTERVAL", 10*time.Second)
}

func (Session) GetSignInPath() string {
	return GetEnv("SIGN_IN_PATH", "/SignIn")
}
