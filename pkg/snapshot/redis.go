package snapshot

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed snapshot store.
// It's suitable for multi-server deployments with shared snapshot state.
type RedisStore struct {
	client *redis.Client
	prefix string
	closed bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix for snapshot keys.
// Default: "replica:snapshot:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed snapshot store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: "replica:snapshot:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.prefix,
	}
}

// key returns the Redis key for a snapshot name.
func (r *RedisStore) key(name string) string {
	return r.prefix + name
}

// Save stores a snapshot under name. Snapshots don't expire.
func (r *RedisStore) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if r.closed {
		return ErrStoreClosed{}
	}

	return r.client.Set(ctx, r.key(name), data, 0).Err()
}

// Load retrieves a snapshot if it exists.
func (r *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if r.closed {
		return nil, ErrStoreClosed{}
	}

	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a snapshot from Redis.
func (r *RedisStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if r.closed {
		return ErrStoreClosed{}
	}

	return r.client.Del(ctx, r.key(name)).Err()
}

// List scans for all keys under the store's prefix and returns the
// snapshot names, sorted.
func (r *RedisStore) List(ctx context.Context) ([]string, error) {
	if r.closed {
		return nil, ErrStoreClosed{}
	}

	var names []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close marks the store closed.
// Note: This does not close the underlying Redis client, as it may be
// shared with other components.
func (r *RedisStore) Close() error {
	r.closed = true
	return nil
}
