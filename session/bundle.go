package session

import (
	"github.com/danaasamuel2023/senyo-sub001/internal/utils"
	"github.com/danaasamuel2023/senyo-sub001/users"
)

// AuthBundle is what the backend returns on sign-in and refresh. Every
// field is optional: nil fields are left untouched when saved.
type AuthBundle struct {
	Token        *string        `json:"token,omitempty"`
	RefreshToken *string        `json:"refreshToken,omitempty"`
	User         *users.Profile `json:"user,omitempty"`
	ExpiresIn    *int           `json:"expiresIn,omitempty"` // seconds
}

// NewAuthBundle builds a complete bundle.
func NewAuthBundle(token, refreshToken string, user users.Profile, expiresIn int) AuthBundle {
	return AuthBundle{
		Token:        utils.Ptr(token),
		RefreshToken: utils.Ptr(refreshToken),
		User:         utils.Ptr(user),
		ExpiresIn:    utils.Ptr(expiresIn),
	}
}

// HasToken reports whether the bundle carries a non-empty access token.
func (b AuthBundle) HasToken() bool {
	return utils.Value(b.Token) != ""
}
