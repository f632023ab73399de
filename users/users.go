package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the role carried on a user profile. Roles are a flat set;
// there is no hierarchy between them.
type RoleType string

const (
	RoleUser       RoleType = "user"       // Buys bundles and tops up a wallet
	RoleAgent      RoleType = "agent"      // Runs a storefront and manages products
	RoleAdmin      RoleType = "admin"      // Manages users, orders and pricing
	RoleSuperAdmin RoleType = "superadmin" // Everything an admin can do, plus admins
)

// KnownRoles lists every role the backend issues.
var KnownRoles = []RoleType{RoleUser, RoleAgent, RoleAdmin, RoleSuperAdmin}

// IsKnown reports whether r is one of KnownRoles.
func (r RoleType) IsKnown() bool {
	for _, known := range KnownRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Profile is the user object delivered with every auth bundle and cached
// client-side under the userData key.
type Profile struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Role          RoleType `json:"role"`
	WalletBalance float64  `json:"walletBalance"`
	PhoneNumber   string   `json:"phoneNumber,omitempty"`
}

// InRoles reports whether the profile's role is a member of roles.
func (p *Profile) InRoles(roles ...RoleType) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Account is the backend-side record behind a Profile.
type Account struct {
	Profile
	PasswordHash string    `json:"-"` // never serialize
	Blocked      bool      `json:"blocked,omitempty"`
	DateJoined   time.Time `json:"dateJoined,omitempty"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains at least one letter and one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var hasLetter, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the account's hash
func (a *Account) CheckPassword(password string) bool {
	return CheckPasswordHash(password, a.PasswordHash)
}
