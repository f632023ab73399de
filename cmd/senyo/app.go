package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/danaasamuel2023/senyo-sub001/client"
	"github.com/danaasamuel2023/senyo-sub001/guard"
	"github.com/danaasamuel2023/senyo-sub001/internal/config"
	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/danaasamuel2023/senyo-sub001/storage"
	"github.com/danaasamuel2023/senyo-sub001/storage/filestore"
	"github.com/danaasamuel2023/senyo-sub001/storage/redisstore"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/rs/zerolog"
)

const redisNamespace = "default"

// app holds what every client command needs. It is built lazily so that
// `serve` and `version` never touch the credential stores.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	baseURL string

	once    sync.Once
	nav     *cliNavigator
	manager *session.Manager
	client  *client.Client
}

func (a *app) init(out io.Writer) {
	a.once.Do(func() {
		a.nav = newCLINavigator(out)
		a.manager = session.NewManager(a.persistentStore(), a.sessionStore(),
			session.WithLogger(a.logger),
			session.WithNavigator(a.nav),
		)
		a.client = client.New(a.baseURL, a.manager,
			client.WithLogger(a.logger),
			client.WithSignInPath(a.cfg.GetSignInPath()),
			client.WithRequestTimeout(a.cfg.GetRequestTimeout()),
		)
		a.manager.SetLogoutNotifier(a.client)
	})
}

// persistentStore outlives the shell session: Redis when configured,
// otherwise a file in the user's config directory.
func (a *app) persistentStore() *storage.Store {
	if url := a.cfg.GetRedisURL(); url != "" {
		backend, err := redisstore.NewFromURL(url, redisNamespace)
		if err == nil {
			return storage.New(backend, storage.WithLogger(a.logger), storage.WithName("credentials"))
		}
		a.logger.Warn().Err(err).Msg("falling back to the credentials file")
	}
	return storage.New(filestore.New(a.cfg.GetCredentialsFile()),
		storage.WithLogger(a.logger), storage.WithName("credentials"))
}

func (a *app) sessionStore() *storage.Store {
	return storage.New(filestore.New(a.cfg.GetSessionFlagFile()),
		storage.WithLogger(a.logger), storage.WithName("session"))
}

// guarded runs render behind the route guard. A redirect becomes a
// *redirectError.
func (a *app) guarded(ctx context.Context, out io.Writer, render guard.RenderFunc, roles ...users.RoleType) error {
	a.init(out)
	g := guard.New(a.manager, a.nav,
		guard.WithSignInPath(a.cfg.GetSignInPath()),
		guard.WithRoles(roles...),
	)
	page := g.Protect(render, nil)
	if err := page(ctx); err != nil {
		return err
	}
	return a.nav.err()
}

// cliNavigator turns navigation into output. The first redirect wins and
// closes Done.
type cliNavigator struct {
	out  io.Writer
	mu   sync.Mutex
	url  string
	done chan struct{}
}

var _ session.Navigator = (*cliNavigator)(nil)

func newCLINavigator(out io.Writer) *cliNavigator {
	return &cliNavigator{out: out, done: make(chan struct{})}
}

func (n *cliNavigator) Navigate(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.url != "" {
		return
	}
	n.url = url
	fmt.Fprintf(n.out, "-> %s\n", url)
	close(n.done)
}

func (n *cliNavigator) Done() <-chan struct{} {
	return n.done
}

func (n *cliNavigator) err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.url == "" {
		return nil
	}
	return &redirectError{URL: n.url}
}

// redirectError reports that a command ended in a navigation instead of
// its own output.
type redirectError struct {
	URL string
}

func (e *redirectError) Error() string {
	return "redirected to " + e.URL
}

// Hint is the line printed for the user.
func (e *redirectError) Hint() string {
	switch {
	case strings.Contains(e.URL, "reason=timeout"):
		return "Your session timed out. Run `senyo login` to sign in again."
	case strings.HasPrefix(e.URL, guard.DefaultUnauthorizedPath):
		return "You do not have access to that command."
	default:
		return "You are not signed in. Run `senyo login`."
	}
}
