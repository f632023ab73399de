// Package session holds the client-side auth state: the credential bundle
// in the persistent store, the per-tab session flag, and the predicates
// derived from them.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/storage"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/rs/zerolog"
)

const (
	sessionFlagTrue      = "true"
	defaultLogoutTimeout = 5 * time.Second
)

// Navigator performs a hard navigation, leaving the current page.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// LogoutNotifier tells the backend that accessToken has been abandoned.
type LogoutNotifier interface {
	NotifyLogout(ctx context.Context, accessToken string) error
}

// Change describes a write to the session state. External changes come
// from another handle on the same store, i.e. another tab.
type Change struct {
	Key      string
	External bool
}

// Manager saves, reads and clears the auth bundle.
type Manager struct {
	persistent    *storage.Store
	flags         *storage.Store
	nowFunc       func() time.Time
	logger        zerolog.Logger
	navigator     Navigator
	logoutTimeout time.Duration

	mu        sync.Mutex
	notifier  LogoutNotifier
	listeners map[int]func(Change)
	nextID    int

	logoutWG sync.WaitGroup
	writing  atomic.Int32

	// Last value this Manager wrote per store and key, for recognising its
	// own writes when a watcher reports them late.
	ownMu  sync.Mutex
	ownSet map[ownKey]ownValue
}

type ownKey struct {
	store *storage.Store
	key   string
}

type ownValue struct {
	value   string
	present bool
}

type Option func(*Manager)

// WithNowFunc sets the time source (primarily for testing).
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithNavigator(nav Navigator) Option {
	return func(m *Manager) {
		m.navigator = nav
	}
}

func WithLogoutNotifier(n LogoutNotifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithLogoutTimeout bounds the best-effort logout notification.
func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.logoutTimeout = d
	}
}

// NewManager creates a Manager over the persistent credential store and the
// per-tab session flag store. Either may be nil, in which case it behaves
// as an empty store.
func NewManager(persistent, flags *storage.Store, options ...Option) *Manager {
	m := &Manager{
		persistent:    persistent,
		flags:         flags,
		nowFunc:       time.Now,
		logger:        zerolog.Nop(),
		navigator:     NavigatorFunc(func(string) {}),
		logoutTimeout: defaultLogoutTimeout,
		listeners:     make(map[int]func(Change)),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// SetLogoutNotifier installs the backend notifier after construction. The
// HTTP client needs the Manager to exist first.
func (m *Manager) SetLogoutNotifier(n LogoutNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// IsTokenExpired reports whether the stored expiry is missing, unparsable or
// in the past.
func (m *Manager) IsTokenExpired() bool {
	expiry, ok := m.expiryMillis()
	if !ok {
		return true
	}
	return m.nowFunc().UnixMilli() > expiry
}

// IsAuthenticated requires an access token, the session flag for this tab,
// and an unexpired token.
func (m *Manager) IsAuthenticated() bool {
	if m.AccessToken() == "" {
		return false
	}
	if flag, _ := m.flags.GetItem(KeySessionFlag); flag != sessionFlagTrue {
		return false
	}
	return !m.IsTokenExpired()
}

// SaveAuthData writes the present fields of bundle, the rememberMe
// preference and the session flag. Keys are written one at a time; a fault
// part-way through leaves the earlier keys written.
func (m *Manager) SaveAuthData(bundle AuthBundle, rememberMe bool) {
	m.writing.Add(1)
	defer m.writing.Add(-1)

	if bundle.Token != nil {
		m.set(m.persistent, KeyAuthToken, *bundle.Token)
	}
	if bundle.RefreshToken != nil {
		m.set(m.persistent, KeyRefreshToken, *bundle.RefreshToken)
	}
	if bundle.User != nil {
		data, err := json.Marshal(bundle.User)
		if err != nil {
			m.logger.Warn().Err(err).Msg("failed to encode user profile")
		} else {
			m.set(m.persistent, KeyUserData, string(data))
		}
	}
	if bundle.ExpiresIn != nil {
		expiry := m.nowFunc().UnixMilli() + int64(*bundle.ExpiresIn)*1000
		m.set(m.persistent, KeyTokenExpiry, strconv.FormatInt(expiry, 10))
	}
	m.set(m.persistent, KeyRememberMe, strconv.FormatBool(rememberMe))
	m.set(m.flags, KeySessionFlag, sessionFlagTrue)

	m.publish(Change{Key: storage.AllKeys})
}

// GetCurrentUser returns the cached profile, or nil when it is missing or
// malformed.
func (m *Manager) GetCurrentUser() *users.Profile {
	for _, key := range []string{KeyUserData, LegacyKeyUser} {
		raw, ok := m.persistent.GetItem(key)
		if !ok || raw == "" {
			continue
		}
		var profile users.Profile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			m.logger.Debug().Err(err).Str("key", key).Msg("ignoring malformed user profile")
			continue
		}
		return &profile
	}
	return nil
}

// GetUserRole returns the cached user's role, or "" when unknown.
func (m *Manager) GetUserRole() users.RoleType {
	if user := m.GetCurrentUser(); user != nil && user.Role != "" {
		return user.Role
	}
	role, _ := m.persistent.GetItem(LegacyKeyUserRole)
	return users.RoleType(role)
}

// HasRole is an exact, case-sensitive comparison.
func (m *Manager) HasRole(role users.RoleType) bool {
	return role != "" && m.GetUserRole() == role
}

// HasAnyRole reports whether the user's role is one of roles.
func (m *Manager) HasAnyRole(roles ...users.RoleType) bool {
	for _, role := range roles {
		if m.HasRole(role) {
			return true
		}
	}
	return false
}

// ClearAuthData removes every auth key, legacy aliases included, and the
// session flag. Safe to call with no session.
func (m *Manager) ClearAuthData() {
	m.writing.Add(1)
	defer m.writing.Add(-1)

	for _, key := range AuthKeys() {
		m.remove(m.persistent, key)
	}
	m.remove(m.flags, KeySessionFlag)

	m.publish(Change{Key: storage.AllKeys})
}

// Logout clears the session, notifies the backend without waiting for the
// result, and navigates to redirectURL. It cannot fail.
func (m *Manager) Logout(ctx context.Context, redirectURL string) {
	token := m.AccessToken()
	m.ClearAuthData()

	m.mu.Lock()
	notifier := m.notifier
	m.mu.Unlock()

	if notifier != nil && token != "" {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
		m.logoutWG.Add(1)
		go func() {
			defer m.logoutWG.Done()
			defer cancel()
			if err := notifier.NotifyLogout(notifyCtx, token); err != nil {
				m.logger.Debug().Err(err).Msg("logout notification failed")
			}
		}()
	}

	m.logger.Info().Str("redirect", redirectURL).Msg("logged out")
	m.navigator.Navigate(redirectURL)
}

// WaitForLogoutNotifications blocks until pending logout notifications
// finish. Short-lived processes call it before exiting.
func (m *Manager) WaitForLogoutNotifications() {
	m.logoutWG.Wait()
}

// PatchWalletBalance updates walletBalance in the cached profile, keeping
// every other field as stored. It reports whether a profile was patched.
func (m *Manager) PatchWalletBalance(newBalance float64) bool {
	raw, ok := m.persistent.GetItem(KeyUserData)
	if !ok || raw == "" {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		m.logger.Debug().Err(err).Msg("cannot patch malformed user profile")
		return false
	}
	balance, err := json.Marshal(newBalance)
	if err != nil {
		return false
	}
	fields["walletBalance"] = balance
	data, err := json.Marshal(fields)
	if err != nil {
		return false
	}
	m.writing.Add(1)
	m.set(m.persistent, KeyUserData, string(data))
	m.writing.Add(-1)

	m.publish(Change{Key: KeyUserData})
	return true
}

func (m *Manager) AccessToken() string {
	token, _ := m.persistent.GetItem(KeyAuthToken)
	return token
}

func (m *Manager) RefreshToken() string {
	token, _ := m.persistent.GetItem(KeyRefreshToken)
	return token
}

func (m *Manager) RememberMe() bool {
	value, _ := m.persistent.GetItem(KeyRememberMe)
	remember, _ := strconv.ParseBool(value)
	return remember
}

// TokenExpiry returns the stored absolute expiry.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	expiry, ok := m.expiryMillis()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(expiry), true
}

func (m *Manager) expiryMillis() (int64, bool) {
	raw, ok := m.persistent.GetItem(KeyTokenExpiry)
	if !ok {
		return 0, false
	}
	expiry, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return expiry, true
}

// Subscribe registers fn for every session change, local or external. The
// returned function unsubscribes and may be called more than once.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
		})
	}
}

// Watch forwards external writes to both stores to subscribers until ctx is
// done. It reports whether either store supports watching. Notifications
// raised while this Manager is itself writing are dropped, as are late ones
// for a key still holding the value this Manager last wrote; subscribers
// hear about those writes from the write itself.
func (m *Manager) Watch(ctx context.Context) bool {
	external := func(store *storage.Store) func(string) {
		return func(key string) {
			if m.writing.Load() > 0 || m.isOwnValue(store, key) {
				return
			}
			m.publish(Change{Key: key, External: true})
		}
	}
	persistent := m.persistent.Watch(ctx, external(m.persistent))
	flags := m.flags.Watch(ctx, external(m.flags))
	return persistent || flags
}

func (m *Manager) set(store *storage.Store, key, value string) {
	m.remember(store, key, ownValue{value: value, present: true})
	store.SetItem(key, value)
}

func (m *Manager) remove(store *storage.Store, key string) {
	m.remember(store, key, ownValue{})
	store.RemoveItem(key)
}

func (m *Manager) remember(store *storage.Store, key string, v ownValue) {
	m.ownMu.Lock()
	defer m.ownMu.Unlock()
	if m.ownSet == nil {
		m.ownSet = make(map[ownKey]ownValue)
	}
	m.ownSet[ownKey{store: store, key: key}] = v
}

func (m *Manager) isOwnValue(store *storage.Store, key string) bool {
	if key == storage.AllKeys {
		return false
	}
	m.ownMu.Lock()
	want, ok := m.ownSet[ownKey{store: store, key: key}]
	m.ownMu.Unlock()
	if !ok {
		return false
	}
	value, present := store.GetItem(key)
	return present == want.present && value == want.value
}

func (m *Manager) publish(change Change) {
	m.mu.Lock()
	listeners := make([]func(Change), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

