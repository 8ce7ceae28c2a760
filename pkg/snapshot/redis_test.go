package snapshot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestRedisStore connects to the Redis named by REPLICA_REDIS_ADDR, or
// skips the test when the variable is unset. Each store gets a random key
// prefix so concurrent runs don't collide; keys are removed on cleanup.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("REPLICA_REDIS_ADDR")
	if addr == "" {
		t.Skip("REPLICA_REDIS_ADDR not set; skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}

	b := make([]byte, 4)
	rand.Read(b)
	prefix := fmt.Sprintf("replica:test:%s:", hex.EncodeToString(b))
	store := NewRedisStore(client, WithRedisPrefix(prefix))

	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		store.Close()
		client.Close()
	})
	return store
}

func TestRedisStore(t *testing.T) {
	exerciseStore(t, newTestRedisStore(t))
}

func TestRedisStorePrefixIsolation(t *testing.T) {
	first := newTestRedisStore(t)
	second := newTestRedisStore(t)
	ctx := context.Background()

	if err := first.Save(ctx, "world", []byte{1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := second.Load(ctx, "world")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if data != nil {
		t.Error("snapshot leaked across prefixes")
	}

	names, err := second.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List across prefixes = %v, want empty", names)
	}
}

func TestRedisStoreClosed(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Save(ctx, "world", []byte{1}); err == nil {
		t.Error("Save on closed store succeeded")
	}
	if _, err := store.Load(ctx, "world"); err == nil {
		t.Error("Load on closed store succeeded")
	}
}
