package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type StorageConfig interface {
	GetCredentialsFile() string
	GetRedisURL() string
	GetSessionID() string
	GetSessionFlagFile() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetCredentialsFile is the persistent credential store. It outlives shell
// sessions, like browser local storage.
func (Storage) GetCredentialsFile() string {
	if path := os.Getenv("CREDENTIALS_FILE"); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "senyo", "credentials.json")
}

// GetRedisURL selects the shared Redis credential store when set.
func (Storage) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}

// GetSessionID identifies the current "tab": the shell session that
// launched the process, unless SENYO_SESSION pins one.
func (Storage) GetSessionID() string {
	return GetEnv("SENYO_SESSION", fmt.Sprintf("ppid-%d", os.Getppid()))
}

// GetSessionFlagFile holds the per-session flags. It lives in the temp
// directory so it does not outlive the machine session.
func (s Storage) GetSessionFlagFile() string {
	return filepath.Join(os.TempDir(), "senyo-sessions", s.GetSessionID()+".json")
}
