// Package guard decides whether a page may render for the current session,
// and where to send the user when it may not.
package guard

import (
	"context"
	"sync"

	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/danaasamuel2023/senyo-sub001/users"
)

const (
	DefaultSignInPath       = "/SignIn"
	DefaultUnauthorizedPath = "/unauthorized"
)

type State int

const (
	Resolving State = iota
	Authorized
	Redirecting
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Authorized:
		return "authorized"
	case Redirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one auth check. User is set whenever a profile
// is cached, including on role redirects.
type Decision struct {
	State    State
	Redirect string
	User     *users.Profile
}

func (d Decision) same(other Decision) bool {
	if d.State != other.State || d.Redirect != other.Redirect {
		return false
	}
	if d.User == nil || other.User == nil {
		return d.User == other.User
	}
	return *d.User == *other.User
}

// Session is the part of session.Manager the guard reads.
type Session interface {
	IsAuthenticated() bool
	GetCurrentUser() *users.Profile
	AccessToken() string
	ClearAuthData()
	Subscribe(fn func(session.Change)) func()
}

var _ Session = (*session.Manager)(nil)

type (
	// RenderFunc draws the protected page for user.
	RenderFunc func(ctx context.Context, user *users.Profile) error
	// FallbackFunc draws the placeholder shown while the check resolves.
	FallbackFunc func(ctx context.Context)
	// Page is a guarded RenderFunc.
	Page func(ctx context.Context) error
)

type Guard struct {
	auth             Session
	nav              session.Navigator
	signInPath       string
	unauthorizedPath string
	roles            []users.RoleType
	clearOnReject    bool
}

type Option func(*Guard)

func WithSignInPath(path string) Option {
	return func(g *Guard) {
		g.signInPath = path
	}
}

func WithUnauthorizedPath(path string) Option {
	return func(g *Guard) {
		g.unauthorizedPath = path
	}
}

// WithRoles restricts the page to users holding one of roles.
func WithRoles(roles ...users.RoleType) Option {
	return func(g *Guard) {
		g.roles = append(g.roles, roles...)
	}
}

// WithClearOnReject clears leftover credentials when an unauthenticated
// visitor is sent to sign in. Off by default, since the persistent store is
// shared with other tabs.
func WithClearOnReject(enabled bool) Option {
	return func(g *Guard) {
		g.clearOnReject = enabled
	}
}

func New(auth Session, nav session.Navigator, options ...Option) *Guard {
	g := &Guard{
		auth:             auth,
		nav:              nav,
		signInPath:       DefaultSignInPath,
		unauthorizedPath: DefaultUnauthorizedPath,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.nav == nil {
		g.nav = session.NavigatorFunc(func(string) {})
	}
	return g
}

// Resolve runs the auth check. With no session source the check cannot
// complete and the decision stays Resolving.
func (g *Guard) Resolve() Decision {
	if g.auth == nil {
		return Decision{State: Resolving}
	}
	if !g.auth.IsAuthenticated() {
		return Decision{State: Redirecting, Redirect: g.signInPath}
	}
	user := g.auth.GetCurrentUser()
	// Valid tokens without a readable profile leave nothing to render with.
	if user == nil {
		return Decision{State: Redirecting, Redirect: g.signInPath}
	}
	if len(g.roles) > 0 && !user.InRoles(g.roles...) {
		return Decision{State: Redirecting, Redirect: g.unauthorizedPath, User: user}
	}
	return Decision{State: Authorized, User: user}
}

// Protect wraps render. The fallback is drawn first; the page is drawn only
// for an Authorized decision. Redirects navigate and draw nothing.
func (g *Guard) Protect(render RenderFunc, fallback FallbackFunc) Page {
	return func(ctx context.Context) error {
		if fallback != nil {
			fallback(ctx)
		}
		decision := g.Resolve()
		switch decision.State {
		case Authorized:
			return render(ctx, decision.User)
		case Redirecting:
			g.redirect(decision)
		}
		return nil
	}
}

// Watch reports the current decision, then a new one each time a session
// change alters it, until ctx is done. Redirect decisions are also
// navigated to.
func (g *Guard) Watch(ctx context.Context, onDecision func(Decision)) {
	if g.auth == nil {
		onDecision(Decision{State: Resolving})
		return
	}

	var (
		mu   sync.Mutex
		last Decision
		seen bool
	)
	check := func() {
		mu.Lock()
		decision := g.Resolve()
		if seen && decision.same(last) {
			mu.Unlock()
			return
		}
		last, seen = decision, true
		mu.Unlock()

		if decision.State == Redirecting {
			g.redirect(decision)
		}
		onDecision(decision)
	}

	unsubscribe := g.auth.Subscribe(func(session.Change) { check() })
	context.AfterFunc(ctx, unsubscribe)
	check()
}

func (g *Guard) redirect(decision Decision) {
	if g.clearOnReject && decision.Redirect == g.signInPath && g.auth.AccessToken() != "" {
		g.auth.ClearAuthData()
	}
	g.nav.Navigate(decision.Redirect)
}
