package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/internal/utils"
	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/danaasamuel2023/senyo-sub001/storage"
	"github.com/danaasamuel2023/senyo-sub001/storage/filestore"
	"github.com/danaasamuel2023/senyo-sub001/storage/memory"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/stretchr/testify/require"
)

var mockNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

var testUser = users.Profile{
	ID:            "user-1",
	Name:          "Ama Mensah",
	Email:         "ama@example.com",
	Role:          users.RoleAgent,
	WalletBalance: 42.5,
}

type fixture struct {
	persistent *memory.Backend
	flags      *memory.Backend
	manager    *session.Manager
	now        time.Time
}

func newFixture(t *testing.T, options ...session.Option) *fixture {
	t.Helper()
	f := &fixture{
		persistent: memory.New(),
		flags:      memory.New(),
		now:        mockNow,
	}
	options = append([]session.Option{session.WithNowFunc(func() time.Time { return f.now })}, options...)
	f.manager = session.NewManager(storage.New(f.persistent), storage.New(f.flags), options...)
	return f
}

func (f *fixture) setExpiry(at time.Time) {
	_ = f.persistent.Set(session.KeyTokenExpiry, strconv.FormatInt(at.UnixMilli(), 10))
}

func TestManager_IsTokenExpired(t *testing.T) {
	tests := []struct {
		name    string
		expiry  *string
		expired bool
	}{
		{name: "missing", expiry: nil, expired: true},
		{name: "non-numeric", expiry: utils.Ptr("tomorrow"), expired: true},
		{name: "empty", expiry: utils.Ptr(""), expired: true},
		{name: "past", expiry: utils.Ptr(strconv.FormatInt(mockNow.Add(-time.Second).UnixMilli(), 10)), expired: true},
		{name: "now", expiry: utils.Ptr(strconv.FormatInt(mockNow.UnixMilli(), 10)), expired: false},
		{name: "future", expiry: utils.Ptr(strconv.FormatInt(mockNow.Add(time.Hour).UnixMilli(), 10)), expired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.expiry != nil {
				_ = f.persistent.Set(session.KeyTokenExpiry, *tt.expiry)
			}
			require.Equal(t, tt.expired, f.manager.IsTokenExpired())
		})
	}
}

func TestManager_IsAuthenticatedRequiresAllThreeConditions(t *testing.T) {
	valid := func(f *fixture) {
		_ = f.persistent.Set(session.KeyAuthToken, "access-1")
		_ = f.flags.Set(session.KeySessionFlag, "true")
		f.setExpiry(mockNow.Add(time.Hour))
	}

	t.Run("all true", func(t *testing.T) {
		f := newFixture(t)
		valid(f)
		require.True(t, f.manager.IsAuthenticated())
	})

	t.Run("no access token", func(t *testing.T) {
		f := newFixture(t)
		valid(f)
		_ = f.persistent.Remove(session.KeyAuthToken)
		require.False(t, f.manager.IsAuthenticated())
	})

	t.Run("no session flag (new tab)", func(t *testing.T) {
		f := newFixture(t)
		valid(f)
		_ = f.flags.Remove(session.KeySessionFlag)
		require.False(t, f.manager.IsAuthenticated())
	})

	t.Run("session flag not true", func(t *testing.T) {
		f := newFixture(t)
		valid(f)
		_ = f.flags.Set(session.KeySessionFlag, "TRUE")
		require.False(t, f.manager.IsAuthenticated())
	})

	t.Run("token expired", func(t *testing.T) {
		f := newFixture(t)
		valid(f)
		f.setExpiry(mockNow.Add(-time.Millisecond))
		require.False(t, f.manager.IsAuthenticated())
	})
}

func TestManager_SaveAuthData(t *testing.T) {
	f := newFixture(t)
	f.manager.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 3600), true)

	require.True(t, f.manager.IsAuthenticated())
	require.Equal(t, &testUser, f.manager.GetCurrentUser())
	require.Equal(t, "access-1", f.manager.AccessToken())
	require.Equal(t, "refresh-1", f.manager.RefreshToken())
	require.True(t, f.manager.RememberMe())

	stored := f.persistent.Snapshot()
	require.Equal(t, strconv.FormatInt(mockNow.UnixMilli()+3_600_000, 10), stored[session.KeyTokenExpiry])
	require.Equal(t, "true", stored[session.KeyRememberMe])
	require.Equal(t, map[string]string{session.KeySessionFlag: "true"}, f.flags.Snapshot())

	expiry, ok := f.manager.TokenExpiry()
	require.True(t, ok)
	require.Equal(t, mockNow.Add(time.Hour).UnixMilli(), expiry.UnixMilli())
}

func TestManager_SaveAuthDataPartialBundle(t *testing.T) {
	f := newFixture(t)
	f.manager.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 3600), false)

	f.now = mockNow.Add(30 * time.Minute)
	f.manager.SaveAuthData(session.AuthBundle{Token: utils.Ptr("access-2"), ExpiresIn: utils.Ptr(60)}, false)

	require.Equal(t, "access-2", f.manager.AccessToken())
	require.Equal(t, "refresh-1", f.manager.RefreshToken(), "omitted refresh token is left untouched")
	require.Equal(t, &testUser, f.manager.GetCurrentUser(), "omitted user is left untouched")

	expiry, ok := f.manager.TokenExpiry()
	require.True(t, ok)
	require.Equal(t, f.now.Add(time.Minute).UnixMilli(), expiry.UnixMilli())
	require.False(t, f.manager.RememberMe())
}

func TestManager_GetCurrentUser(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)
		require.Nil(t, f.manager.GetCurrentUser())
		require.Equal(t, users.RoleType(""), f.manager.GetUserRole())
	})

	t.Run("malformed", func(t *testing.T) {
		f := newFixture(t)
		_ = f.persistent.Set(session.KeyUserData, "{not json")
		require.NotPanics(t, func() {
			require.Nil(t, f.manager.GetCurrentUser())
		})
	})

	t.Run("legacy key", func(t *testing.T) {
		f := newFixture(t)
		data, err := json.Marshal(testUser)
		require.NoError(t, err)
		_ = f.persistent.Set(session.LegacyKeyUser, string(data))
		require.Equal(t, &testUser, f.manager.GetCurrentUser())
	})

	t.Run("legacy role key", func(t *testing.T) {
		f := newFixture(t)
		_ = f.persistent.Set(session.LegacyKeyUserRole, "admin")
		require.True(t, f.manager.HasRole(users.RoleAdmin))
	})
}

func TestManager_HasRole(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.manager.HasRole(""))

	f.manager.SaveAuthData(session.AuthBundle{User: &testUser}, false)

	require.True(t, f.manager.HasRole(users.RoleAgent))
	require.False(t, f.manager.HasRole("Agent"))
	require.False(t, f.manager.HasRole(users.RoleAdmin))
	require.True(t, f.manager.HasAnyRole(users.RoleAdmin, users.RoleAgent))
	require.False(t, f.manager.HasAnyRole(users.RoleAdmin, users.RoleSuperAdmin))
	require.False(t, f.manager.HasAnyRole())
}

func TestManager_ClearAuthData(t *testing.T) {
	f := newFixture(t)
	f.manager.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 3600), true)
	for _, key := range []string{session.LegacyKeyToken, session.LegacyKeyUserID, session.LegacyKeyUserEmail} {
		_ = f.persistent.Set(key, "legacy")
	}
	_ = f.persistent.Set("theme", "dark")

	f.manager.ClearAuthData()

	require.False(t, f.manager.IsAuthenticated())
	require.Equal(t, map[string]string{"theme": "dark"}, f.persistent.Snapshot())
	require.Empty(t, f.flags.Snapshot())

	require.NotPanics(t, f.manager.ClearAuthData)
	require.False(t, f.manager.IsAuthenticated())
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens []string
	done   chan struct{}
	err    error
}

func (n *recordingNotifier) NotifyLogout(ctx context.Context, token string) error {
	defer close(n.done)
	n.mu.Lock()
	n.tokens = append(n.tokens, token)
	n.mu.Unlock()
	return n.err
}

func TestManager_Logout(t *testing.T) {
	var navigated []string
	notifier := &recordingNotifier{done: make(chan struct{}), err: errors.New("offline")}
	f := newFixture(t,
		session.WithNavigator(session.NavigatorFunc(func(url string) { navigated = append(navigated, url) })),
		session.WithLogoutNotifier(notifier),
	)
	f.manager.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 3600), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.manager.Logout(ctx, "/SignIn")
	f.manager.WaitForLogoutNotifications()

	require.False(t, f.manager.IsAuthenticated())
	require.Empty(t, f.persistent.Snapshot())
	require.Equal(t, []string{"/SignIn"}, navigated)
	require.Equal(t, []string{"access-1"}, notifier.tokens, "notification runs detached from the caller's context")
}

func TestManager_LogoutWithoutSessionSkipsNotification(t *testing.T) {
	var navigated []string
	notifier := &recordingNotifier{done: make(chan struct{})}
	f := newFixture(t, session.WithNavigator(session.NavigatorFunc(func(url string) { navigated = append(navigated, url) })))
	f.manager.SetLogoutNotifier(notifier)

	f.manager.Logout(context.Background(), "/SignIn")
	f.manager.WaitForLogoutNotifications()

	require.Empty(t, notifier.tokens)
	require.Equal(t, []string{"/SignIn"}, navigated)
}

func TestManager_PatchWalletBalance(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.manager.PatchWalletBalance(10))

	_ = f.persistent.Set(session.KeyUserData, `{"id":"user-1","role":"user","walletBalance":5,"referralCode":"AMA42"}`)
	require.True(t, f.manager.PatchWalletBalance(17.5))

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.persistent.Snapshot()[session.KeyUserData]), &stored))
	require.Equal(t, 17.5, stored["walletBalance"])
	require.Equal(t, "AMA42", stored["referralCode"], "unknown fields survive the patch")
	require.Equal(t, 17.5, f.manager.GetCurrentUser().WalletBalance)
}

func TestManager_SubscribeAndWatch(t *testing.T) {
	shared := memory.New()
	tabA := session.NewManager(storage.New(shared), storage.New(memory.New()), session.WithNowFunc(func() time.Time { return mockNow }))
	tabB := session.NewManager(storage.New(shared), storage.New(memory.New()), session.WithNowFunc(func() time.Time { return mockNow }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, tabB.Watch(ctx))

	var changes []session.Change
	unsubscribe := tabB.Subscribe(func(c session.Change) { changes = append(changes, c) })

	tabA.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 3600), false)
	require.NotEmpty(t, changes)
	for _, c := range changes {
		require.True(t, c.External)
	}
	require.False(t, tabB.IsAuthenticated(), "a token written by another tab does not authenticate this one")

	seen := len(changes)
	tabB.ClearAuthData()
	require.Len(t, changes, seen+1, "own writes are reported once, not echoed back from the store")
	require.False(t, changes[seen].External)

	unsubscribe()
	unsubscribe()
	tabA.SaveAuthData(session.AuthBundle{Token: utils.Ptr("access-2")}, false)
	require.Len(t, changes, seen+1)
}

func TestManager_WatchIgnoresLateEchoesOfOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	newTab := func() *session.Manager {
		return session.NewManager(storage.New(filestore.New(path)), storage.New(memory.New()),
			session.WithNowFunc(func() time.Time { return mockNow }))
	}
	tabA, tabB := newTab(), newTab()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, tabB.Watch(ctx))

	var (
		mu       sync.Mutex
		external []string
	)
	tabB.Subscribe(func(c session.Change) {
		if c.External {
			mu.Lock()
			external = append(external, c.Key)
			mu.Unlock()
		}
	})
	externalKeys := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), external...)
	}

	tabB.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 3600), false)
	require.True(t, tabB.PatchWalletBalance(50))
	time.Sleep(200 * time.Millisecond)
	require.Empty(t, externalKeys(), "the file watcher reports this tab's own writes late")

	tabA.SaveAuthData(session.AuthBundle{Token: utils.Ptr("access-2")}, true)
	require.Eventually(t, func() bool {
		for _, key := range externalKeys() {
			if key == session.KeyAuthToken {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "access-2", tabB.AccessToken())
}

// limitedBackend accepts a fixed number of writes and fails the rest, like
// a process killed part-way through SaveAuthData.
type limitedBackend struct {
	*memory.Backend
	writesLeft int
}

func (b *limitedBackend) Set(key, value string) error {
	if b.writesLeft <= 0 {
		return errors.New("interrupted")
	}
	b.writesLeft--
	return b.Backend.Set(key, value)
}

func TestManager_InterruptedSaveNeverAuthenticates(t *testing.T) {
	bundle := session.NewAuthBundle("access-2", "refresh-2", testUser, 3600)

	// The expiry is the fourth key written.
	for writes := 0; writes < 4; writes++ {
		t.Run("fresh session after "+strconv.Itoa(writes)+" writes", func(t *testing.T) {
			backend := &limitedBackend{Backend: memory.New(), writesLeft: writes}
			flags := memory.New()
			m := session.NewManager(storage.New(backend), storage.New(flags), session.WithNowFunc(func() time.Time { return mockNow }))

			m.SaveAuthData(bundle, false)

			require.False(t, m.IsAuthenticated())
		})
	}

	t.Run("refresh interrupted before the new expiry is written", func(t *testing.T) {
		backend := &limitedBackend{Backend: memory.New(), writesLeft: 100}
		flags := memory.New()
		now := mockNow
		m := session.NewManager(storage.New(backend), storage.New(flags), session.WithNowFunc(func() time.Time { return now }))
		m.SaveAuthData(session.NewAuthBundle("access-1", "refresh-1", testUser, 60), false)

		now = mockNow.Add(2 * time.Minute)
		require.True(t, m.IsTokenExpired())

		backend.writesLeft = 3 // token, refresh token and user; not the expiry
		m.SaveAuthData(bundle, false)

		require.Equal(t, "access-2", m.AccessToken())
		require.True(t, m.IsTokenExpired(), "the stale expiry keeps the half-written bundle expired")
		require.False(t, m.IsAuthenticated())
	})
}
