// Package events is a small in-process event bus standing in for the
// page-scoped custom events the session components broadcast.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event names
const (
	BalanceUpdated = "balanceUpdated"
	SessionWarning = "sessionWarning"
)

// BalanceDetail is carried by BalanceUpdated events.
type BalanceDetail struct {
	NewBalance float64   `json:"newBalance"`
	Reference  string    `json:"reference"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionWarningDetail is carried by SessionWarning events.
type SessionWarningDetail struct {
	MinutesRemaining int `json:"minutesRemaining"`
}

// Event is a named notification with an arbitrary detail payload.
type Event struct {
	Name       string
	Detail     any
	Cancelable bool
	// Source names the dispatcher, so a component can recognise its own
	// broadcasts when it also listens to the same event.
	Source string

	defaultPrevented bool
}

// PreventDefault marks a cancelable event as cancelled.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.defaultPrevented = true
	}
}

func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Handler receives dispatched events.
type Handler func(*Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	logger zerolog.Logger
}

// NewBus returns an empty bus. A zero logger disables panic reporting.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers h for events called name and returns a function
// removing it. The returned function is safe to call more than once.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[name]
			for i, s := range list {
				if s.id == id {
					b.subs[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Dispatch delivers e to every subscriber of e.Name. It returns false if a
// subscriber cancelled a cancelable event.
func (b *Bus) Dispatch(e *Event) bool {
	if b == nil || e == nil {
		return true
	}

	b.mu.RLock()
	list := make([]subscription, len(b.subs[e.Name]))
	copy(list, b.subs[e.Name])
	b.mu.RUnlock()

	for _, s := range list {
		b.deliver(s.handler, e)
	}
	return !e.defaultPrevented
}

func (b *Bus) deliver(h Handler, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", e.Name).Msg("event handler panicked")
		}
	}()
	h(e)
}
