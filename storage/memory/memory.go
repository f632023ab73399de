// Package memory is an in-process storage backend. Two Stores sharing one
// Backend see each other's writes, like two tabs sharing browser storage.
package memory

import (
	"context"
	"sync"

	"github.com/danaasamuel2023/senyo-sub001/storage"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Watcher = (*Backend)(nil)
)

type Backend struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[int]func(key string)
	nextID   int
}

func New() *Backend {
	return &Backend{
		values:   make(map[string]string),
		watchers: make(map[int]func(key string)),
	}
}

func (b *Backend) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *Backend) Set(key, value string) error {
	b.mu.Lock()
	b.values[key] = value
	b.mu.Unlock()
	b.notify(key)
	return nil
}

func (b *Backend) Remove(key string) error {
	b.mu.Lock()
	_, existed := b.values[key]
	delete(b.values, key)
	b.mu.Unlock()
	if existed {
		b.notify(key)
	}
	return nil
}

func (b *Backend) Clear() error {
	b.mu.Lock()
	b.values = make(map[string]string)
	b.mu.Unlock()
	b.notify(storage.AllKeys)
	return nil
}

// Snapshot returns a copy of every stored value.
func (b *Backend) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Watch reports every write until ctx is done.
func (b *Backend) Watch(ctx context.Context, onChange func(key string)) error {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.watchers[id] = onChange
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *Backend) notify(key string) {
	b.mu.RLock()
	fns := make([]func(string), 0, len(b.watchers))
	for _, fn := range b.watchers {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
}
