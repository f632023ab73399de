package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StorageConfig
	BackendConfig
}

type mainConfig struct {
	EnvVars
	API
	Session
	Storage
	Backend
}

// New loads a .env file from the working directory, if present, and
// returns configuration backed by the process environment.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
