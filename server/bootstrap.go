package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/google/uuid"
)

const (
	DefaultSuperAdminUsername = "admin"

	// DemoPassword is shared by the accounts seeded in DEV.
	DemoPassword = "senyo-demo-1"

	bootstrapPageSize = 100
)

// demoAccounts are seeded in DEV so the client has someone to sign in as.
var demoAccounts = []users.Profile{
	{Name: "Demo Customer", Email: "user@senyo.local", Role: users.RoleUser, PhoneNumber: "0240000001"},
	{Name: "Demo Agent", Email: "agent@senyo.local", Role: users.RoleAgent, PhoneNumber: "0240000002", WalletBalance: 100},
	{Name: "Demo Admin", Email: "staff@senyo.local", Role: users.RoleAdmin},
}

// InitialiseSystem makes sure a super admin exists and, in DEV, seeds the
// demo accounts. It returns the generated super admin password on first
// creation, "" if one already existed.
func (s *Server) InitialiseSystem() (generatedPassword string, err error) {
	s.logger.Info().Msg("bootstrap: checking system configuration")

	baseURL := s.config.GetBaseURL()
	superAdminEmail := generateEmailFromBaseURL(DefaultSuperAdminUsername, baseURL)
	generatedPassword, err = s.bootstrapSuperAdmin(superAdminEmail)
	if err != nil {
		return "", fmt.Errorf("failed to bootstrap super admin: %w", err)
	}

	if s.env == "DEV" {
		if err := s.seedDemoAccounts(); err != nil {
			return "", fmt.Errorf("failed to seed demo accounts: %w", err)
		}
	}

	if generatedPassword != "" {
		s.logger.Warn().
			Str("baseUrl", baseURL).
			Str("email", superAdminEmail).
			Str("password", generatedPassword).
			Msg("bootstrap: created super admin, save this password - it will not be displayed again")
	} else {
		s.logger.Info().Str("baseUrl", baseURL).Msg("bootstrap: system already configured")
	}
	return generatedPassword, nil
}

// bootstrapSuperAdmin creates the super admin user if none exists
func (s *Server) bootstrapSuperAdmin(adminEmail string) (generatedPassword string, err error) {
	for offset := 0; ; offset += bootstrapPageSize {
		existingUsers, err := s.repos.Users.List(offset, bootstrapPageSize)
		if err != nil {
			return "", fmt.Errorf("failed to check for existing users: %w", err)
		}
		for _, user := range existingUsers {
			if user.Role == users.RoleSuperAdmin {
				s.logger.Info().Str("email", user.Email).Msg("bootstrap: super admin already exists")
				return "", nil
			}
		}
		if len(existingUsers) < bootstrapPageSize {
			break
		}
	}

	// Generate a secure random password
	passwordBytes := make([]byte, 16)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	generatedPassword = base64.URLEncoding.EncodeToString(passwordBytes)

	passwordHash, err := users.HashPassword(generatedPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &users.Account{
		Profile: users.Profile{
			ID:    uuid.New().String(),
			Name:  "System Administrator",
			Email: adminEmail,
			Role:  users.RoleSuperAdmin,
		},
		PasswordHash: passwordHash,
		DateJoined:   s.nowFunc().UTC(),
	}
	if err := s.repos.Users.Upsert(admin); err != nil {
		return "", fmt.Errorf("failed to create super admin: %w", err)
	}
	return generatedPassword, nil
}

func (s *Server) seedDemoAccounts() error {
	passwordHash, err := users.HashPassword(DemoPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	for _, profile := range demoAccounts {
		if _, err := s.repos.Users.GetByEmail(profile.Email); err == nil {
			continue
		}
		profile.ID = uuid.New().String()
		account := &users.Account{
			Profile:      profile,
			PasswordHash: passwordHash,
			DateJoined:   s.nowFunc().UTC(),
		}
		if err := s.repos.Users.Upsert(account); err != nil {
			return fmt.Errorf("failed to create %s: %w", profile.Email, err)
		}
		s.logger.Info().Str("email", profile.Email).Str("role", string(profile.Role)).Msg("bootstrap: seeded demo account")
	}
	return nil
}

// generateEmailFromBaseURL creates an email address from a username and base URL
// Example: ("admin", "https://api.example.com/path") -> "admin@api.example.com"
func generateEmailFromBaseURL(user, baseURL string) string {
	domain := strings.ReplaceAll(strings.ReplaceAll(baseURL, "https://", ""), "http://", "")
	domain = strings.SplitN(domain, "/", 2)[0] // Remove any path - safe because SplitN always returns at least 1 element
	domain = strings.SplitN(domain, ":", 2)[0] // Remove port if present
	return fmt.Sprintf("%s@%s", user, domain)
}
