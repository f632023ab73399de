// Package storage is the credential store shared by every session
// component: a key-value facade that never lets a storage fault escape.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AllKeys is passed to change listeners when a backend cannot name the key
// that changed, e.g. after Clear.
const AllKeys = ""

// Backend is a concrete key-value store. Backends report faults as errors;
// Store turns them into no-ops.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
}

// Watcher is implemented by backends that can report writes made through
// other handles on the same data, such as another process sharing a file.
// Watch returns once watching has started and stops when ctx is done.
type Watcher interface {
	Watch(ctx context.Context, onChange func(key string)) error
}

// Error describes a contained backend fault.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store wraps a Backend. A nil *Store, or one without a backend, behaves as
// an empty store that ignores writes.
type Store struct {
	name    string
	backend Backend
	logger  zerolog.Logger
}

type Option func(*Store)

// WithLogger sets the logger used to report contained faults.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithName labels the store in log lines.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

func New(backend Backend, options ...Option) *Store {
	s := &Store{
		name:    "credentials",
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// GetItem returns the value stored under key. Missing keys and faults both
// report ok == false.
func (s *Store) GetItem(key string) (value string, ok bool) {
	if !s.usable() {
		return "", false
	}
	defer s.contain("get", key, func() { value, ok = "", false })

	value, ok, err := s.backend.Get(key)
	if err != nil {
		s.fault(&Error{Op: "get", Key: key, Err: err})
		return "", false
	}
	return value, ok
}

func (s *Store) SetItem(key, value string) {
	if !s.usable() {
		return
	}
	defer s.contain("set", key, nil)

	if err := s.backend.Set(key, value); err != nil {
		s.fault(&Error{Op: "set", Key: key, Err: err})
	}
}

func (s *Store) RemoveItem(key string) {
	if !s.usable() {
		return
	}
	defer s.contain("remove", key, nil)

	if err := s.backend.Remove(key); err != nil {
		s.fault(&Error{Op: "remove", Key: key, Err: err})
	}
}

func (s *Store) Clear() {
	if !s.usable() {
		return
	}
	defer s.contain("clear", AllKeys, nil)

	if err := s.backend.Clear(); err != nil {
		s.fault(&Error{Op: "clear", Key: AllKeys, Err: err})
	}
}

// Watch forwards change notifications from the backend, if it supports
// them. It reports whether watching started.
func (s *Store) Watch(ctx context.Context, onChange func(key string)) (started bool) {
	if !s.usable() {
		return false
	}
	w, ok := s.backend.(Watcher)
	if !ok {
		return false
	}
	defer s.contain("watch", AllKeys, func() { started = false })

	if err := w.Watch(ctx, onChange); err != nil {
		s.fault(&Error{Op: "watch", Key: AllKeys, Err: err})
		return false
	}
	return true
}

func (s *Store) usable() bool {
	return s != nil && s.backend != nil
}

func (s *Store) fault(err *Error) {
	s.logger.Warn().Err(err.Err).Str("store", s.name).Str("op", err.Op).Str("key", err.Key).Msg("storage fault contained")
}

func (s *Store) contain(op, key string, reset func()) {
	if r := recover(); r != nil {
		s.fault(&Error{Op: op, Key: key, Err: fmt.Errorf("panic: %v", r)})
		if reset != nil {
			reset()
		}
	}
}
