// Package filestore persists credentials as a JSON object in a single
// file, shared between processes. Writes go through a temp file and an
// atomic rename, so readers never observe a torn file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danaasamuel2023/senyo-sub001/storage"
	"github.com/fsnotify/fsnotify"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Watcher = (*Backend)(nil)
)

const (
	filePerm = 0o600
	dirPerm  = 0o700
)

type Backend struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Backend {
	return &Backend{path: filepath.Clean(path)}
}

func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) Get(key string) (string, bool, error) {
	values, err := b.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (b *Backend) Set(key, value string) error {
	return b.update(func(values map[string]string) {
		values[key] = value
	})
}

func (b *Backend) Remove(key string) error {
	return b.update(func(values map[string]string) {
		delete(values, key)
	})
}

func (b *Backend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}

// Watch reports keys whose values differ after any change to the file,
// whichever process made it.
func (b *Backend) Watch(ctx context.Context, onChange func(key string)) error {
	if err := os.MkdirAll(filepath.Dir(b.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The directory is watched rather than the file: the atomic rename
	// replaces the inode on every write.
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch credentials directory: %w", err)
	}

	last, _ := b.load()
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != b.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				current, err := b.load()
				if err != nil {
					continue
				}
				for _, key := range changedKeys(last, current) {
					onChange(key)
				}
				last = current
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (b *Backend) load() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return values, nil
}

func (b *Backend) update(mutate func(map[string]string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.load()
	if err != nil {
		// A corrupt file is replaced rather than left blocking every write.
		values = map[string]string{}
	}
	mutate(values)

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tempFile := b.path + ".tmp"
	if err := os.WriteFile(tempFile, data, filePerm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, b.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf("failed to rename temp file: %v; additionally failed to remove temp file: %w", err, removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func changedKeys(before, after map[string]string) []string {
	var keys []string
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			keys = append(keys, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
