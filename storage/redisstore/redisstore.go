// Package redisstore keeps credentials in a Redis hash so that several
// client processes can share one session. Writes are announced on a
// pub/sub channel, which is how other processes learn about them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/storage"
	"github.com/redis/go-redis/v9"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Watcher = (*Backend)(nil)
)

const (
	keyPrefix             = "senyo:credentials:"
	defaultCommandTimeout = 2 * time.Second
)

type Backend struct {
	client  redis.UniversalClient
	hash    string
	channel string
	ttl     time.Duration
	timeout time.Duration
}

type Option func(*Backend)

// WithTTL expires the whole hash ttl after the latest write.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.ttl = ttl
	}
}

// WithCommandTimeout bounds every Redis round trip.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(b *Backend) {
		b.timeout = timeout
	}
}

// New stores values under the hash for namespace.
func New(client redis.UniversalClient, namespace string, options ...Option) *Backend {
	b := &Backend{
		client:  client,
		hash:    keyPrefix + namespace,
		channel: keyPrefix + namespace + ":changes",
		timeout: defaultCommandTimeout,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// NewFromURL parses a redis:// URL and connects lazily.
func NewFromURL(url, namespace string, options ...Option) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return New(redis.NewClient(opts), namespace, options...), nil
}

func (b *Backend) Get(key string) (string, bool, error) {
	ctx, cancel := b.ctx()
	defer cancel()

	v, err := b.client.HGet(ctx, b.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *Backend) Set(key, value string) error {
	ctx, cancel := b.ctx()
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.hash, key, value)
	if b.ttl > 0 {
		pipe.Expire(ctx, b.hash, b.ttl)
	}
	pipe.Publish(ctx, b.channel, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *Backend) Remove(key string) error {
	ctx, cancel := b.ctx()
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.HDel(ctx, b.hash, key)
	pipe.Publish(ctx, b.channel, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *Backend) Clear() error {
	ctx, cancel := b.ctx()
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.hash)
	pipe.Publish(ctx, b.channel, storage.AllKeys)
	_, err := pipe.Exec(ctx)
	return err
}

// Watch subscribes to the change channel until ctx is done.
func (b *Backend) Watch(ctx context.Context, onChange func(key string)) error {
	sub := b.client.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so no write is missed after
	// Watch returns.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	messages := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				onChange(msg.Payload)
			}
		}
	}()
	return nil
}

func (b *Backend) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}
