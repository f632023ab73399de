// Package balance polls the backend for out-of-band wallet balance changes
// such as completed mobile-money deposits.
package balance

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/client"
	"github.com/danaasamuel2023/senyo-sub001/events"
	"github.com/danaasamuel2023/senyo-sub001/internal/clock"
	"github.com/danaasamuel2023/senyo-sub001/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 10 * time.Second
	UpdatePath      = "/api/balance-update/"
	eventSource     = "balance-poller"
)

// Fetcher is satisfied by *client.Client.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, out any, options ...client.RequestOption) error
}

// ProfileCache is satisfied by *session.Manager.
type ProfileCache interface {
	PatchWalletBalance(newBalance float64) bool
}

// PollResponse is the body of GET /api/balance-update/{userId}.
type PollResponse struct {
	Success   bool                  `json:"success"`
	HasUpdate bool                  `json:"hasUpdate"`
	Data      *events.BalanceDetail `json:"data,omitempty"`
}

// State is what the poller has observed so far.
type State struct {
	Balance    float64
	LastUpdate *events.BalanceDetail
	Updates    int
}

type Poller struct {
	api      Fetcher
	cache    ProfileCache
	bus      *events.Bus
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger
	onUpdate func(State)

	mu          sync.Mutex
	state       State
	userID      string
	enabled     bool
	generation  int
	ticker      clock.Timer
	cancel      context.CancelFunc
	unsubscribe func()
}

type Option func(*Poller)

func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithOnUpdate registers a callback run after every state change.
func WithOnUpdate(fn func(State)) Option {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

func New(api Fetcher, cache ProfileCache, bus *events.Bus, options ...Option) *Poller {
	p := &Poller{
		api:      api,
		cache:    cache,
		bus:      bus,
		clock:    clock.Real{},
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Watch starts polling for userID when enabled, with one poll straight
// away. Calling it again with different arguments restarts or stops
// polling; the same arguments are a no-op.
func (p *Poller) Watch(userID string, enabled bool) {
	p.mu.Lock()
	if p.userID == userID && p.enabled == enabled && (p.ticker != nil || !enabled) {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.userID, p.enabled = userID, enabled
	if !enabled || userID == "" {
		p.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	gen := p.generation
	p.ticker = p.clock.Interval(p.interval, func() { p.poll(ctx, gen, userID) })
	if p.bus != nil {
		p.unsubscribe = p.bus.Subscribe(events.BalanceUpdated, func(e *events.Event) { p.merge(gen, e) })
	}
	p.mu.Unlock()

	p.poll(ctx, gen, userID)
}

// Stop cancels the interval, any in-flight poll and the event subscription.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.userID, p.enabled = "", false
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) stopLocked() {
	p.generation++
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

func (p *Poller) poll(ctx context.Context, gen int, userID string) {
	var resp PollResponse
	if err := p.api.GetJSON(ctx, UpdatePath+url.PathEscape(userID), &resp); err != nil {
		metrics.ObserveBalancePoll(metrics.ResultFailure)
		p.logger.Debug().Err(err).Str("user_id", userID).Msg("balance poll failed")
		return
	}
	if !resp.Success || !resp.HasUpdate || resp.Data == nil {
		metrics.ObserveBalancePoll(metrics.ResultUnchanged)
		return
	}

	detail := *resp.Data
	if detail.Timestamp.IsZero() {
		detail.Timestamp = p.clock.Now()
	}
	state, ok := p.apply(gen, detail)
	if !ok {
		return
	}
	metrics.ObserveBalancePoll(metrics.ResultUpdated)

	p.cache.PatchWalletBalance(detail.NewBalance)
	p.bus.Dispatch(&events.Event{Name: events.BalanceUpdated, Detail: detail, Source: eventSource})
	p.logger.Info().Float64("new_balance", detail.NewBalance).Str("reference", detail.Reference).Msg("wallet balance updated")
	p.notify(state)
}

// merge folds balance updates broadcast by other components into the
// poller's state.
func (p *Poller) merge(gen int, e *events.Event) {
	if e.Source == eventSource {
		return
	}
	var detail events.BalanceDetail
	switch d := e.Detail.(type) {
	case events.BalanceDetail:
		detail = d
	case *events.BalanceDetail:
		if d == nil {
			return
		}
		detail = *d
	default:
		return
	}
	if state, ok := p.apply(gen, detail); ok {
		p.notify(state)
	}
}

// apply records detail unless the poll that produced it has been
// superseded.
func (p *Poller) apply(gen int, detail events.BalanceDetail) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return State{}, false
	}
	p.state.Balance = detail.NewBalance
	p.state.LastUpdate = &detail
	p.state.Updates++
	return p.state, true
}

func (p *Poller) notify(state State) {
	if p.onUpdate != nil {
		p.onUpdate(state)
	}
}
