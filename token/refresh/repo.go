package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record of an issued refresh token.
// The client only ever sees Token, an opaque random string.
type StoredRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// Repo stores refresh token records keyed by the token string. Each user
// holds at most one refresh token.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}
