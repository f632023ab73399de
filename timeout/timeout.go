// Package timeout logs an idle session out after a fixed period, warning
// shortly before it does.
package timeout

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/events"
	"github.com/danaasamuel2023/senyo-sub001/internal/clock"
	"github.com/danaasamuel2023/senyo-sub001/internal/metrics"
	"github.com/rs/zerolog"
)

// TimeoutRedirect tells the sign-in page why the user is there.
const TimeoutRedirect = "/SignIn?reason=timeout"

// Session is the part of session.Manager the timeout needs.
type Session interface {
	Logout(ctx context.Context, redirectURL string)
	RememberMe() bool
}

type Manager struct {
	session  Session
	bus      *events.Bus
	clock    clock.Clock
	logger   zerolog.Logger
	redirect string

	mu      sync.Mutex
	gen     uint64 // bumped whenever pending timers are superseded
	timeout time.Duration
	warning time.Duration
	warnAt  clock.Timer
	logout  clock.Timer
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRedirect overrides where the timeout logout navigates.
func WithRedirect(url string) Option {
	return func(m *Manager) {
		m.redirect = url
	}
}

// New returns a Manager that dispatches warnings on bus, which may be nil.
func New(sess Session, bus *events.Bus, options ...Option) *Manager {
	m := &Manager{
		session:  sess,
		bus:      bus,
		clock:    clock.Real{},
		logger:   zerolog.Nop(),
		redirect: TimeoutRedirect,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// StartSession replaces any pending timers with a warning at
// timeout-warning and a logout at timeout. A warning lead that is not
// shorter than timeout schedules no warning.
func (m *Manager) StartSession(timeout, warning time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.timeout, m.warning = timeout, warning
	m.scheduleLocked()
}

// RefreshSession restarts the timers from now. Remember-me sessions are not
// subject to idle timeout and are left alone.
func (m *Manager) RefreshSession() {
	if m.session.RememberMe() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timeout <= 0 {
		return
	}
	m.stopLocked()
	m.scheduleLocked()
}

// ClearSession cancels pending timers. It is safe to call at any time.
func (m *Manager) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.timeout, m.warning = 0, 0
}

func (m *Manager) scheduleLocked() {
	if m.timeout <= 0 {
		return
	}
	gen := m.gen
	if m.warning > 0 && m.warning < m.timeout {
		m.warnAt = m.clock.AfterFunc(m.timeout-m.warning, func() { m.fireWarning(gen) })
	}
	m.logout = m.clock.AfterFunc(m.timeout, func() { m.fireLogout(gen) })
}

// stopLocked cancels the timers. A callback already running when Stop is
// called sees the new generation and does nothing.
func (m *Manager) stopLocked() {
	m.gen++
	if m.warnAt != nil {
		m.warnAt.Stop()
		m.warnAt = nil
	}
	if m.logout != nil {
		m.logout.Stop()
		m.logout = nil
	}
}

func (m *Manager) fireWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.warnAt = nil
	remaining := int(math.Ceil(m.warning.Minutes()))
	m.mu.Unlock()

	event := &events.Event{
		Name:       events.SessionWarning,
		Detail:     events.SessionWarningDetail{MinutesRemaining: remaining},
		Cancelable: true,
		Source:     "timeout",
	}
	if m.bus.Dispatch(event) {
		m.logger.Info().Int("minutes_remaining", remaining).Msg("session about to expire")
	}
}

func (m *Manager) fireLogout(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.logout = nil
	m.timeout, m.warning = 0, 0
	m.mu.Unlock()

	metrics.ObserveForcedLogout(metrics.ReasonSessionTimeout)
	m.logger.Info().Msg("session timed out")
	m.session.Logout(context.Background(), m.redirect)
}
