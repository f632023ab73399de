package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const tokenLength = 32 // bytes, 256 bits

// Manager handles refresh token creation, lookup and rotation
type Manager struct {
	repo    Repo
	expiry  time.Duration
	nowFunc func() time.Time
}

// NewManager creates a refresh token manager. Tokens live for expiry after
// they are issued.
func NewManager(repo Repo, expiry time.Duration, nowFunc func() time.Time) *Manager {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Manager{
		repo:    repo,
		expiry:  expiry,
		nowFunc: nowFunc,
	}
}

// Create issues a new refresh token for userID, replacing any previous one.
func (m *Manager) Create(userID string) (string, error) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.nowFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// DeleteForUser removes the user's refresh token, if any.
func (m *Manager) DeleteForUser(userID string) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		_ = m.repo.Delete(existing.Token)
	}
}

func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().Sub(rt.Iat) > m.expiry
}
