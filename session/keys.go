package session

// Persistent store keys. The names are shared with the web front-end and
// must not change.
const (
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyUserData     = "userData"
	KeyTokenExpiry  = "tokenExpiry"
	KeyRememberMe   = "rememberMe"
)

// KeySessionFlag lives in the session flag store, not the persistent one.
const KeySessionFlag = "isAuthenticated"

// Legacy aliases written by older front-end builds. They are removed with
// the canonical keys but never written.
const (
	LegacyKeyToken     = "token"
	LegacyKeyUser      = "user"
	LegacyKeyUserRole  = "userRole"
	LegacyKeyUserID    = "userId"
	LegacyKeyUserName  = "userName"
	LegacyKeyUserEmail = "userEmail"
)

var canonicalKeys = []string{KeyAuthToken, KeyRefreshToken, KeyUserData, KeyTokenExpiry, KeyRememberMe}

var legacyKeys = []string{LegacyKeyToken, LegacyKeyUser, LegacyKeyUserRole, LegacyKeyUserID, LegacyKeyUserName, LegacyKeyUserEmail}

// AuthKeys returns every persistent key ClearAuthData removes.
func AuthKeys() []string {
	keys := make([]string, 0, len(canonicalKeys)+len(legacyKeys))
	keys = append(keys, canonicalKeys...)
	return append(keys, legacyKeys...)
}
