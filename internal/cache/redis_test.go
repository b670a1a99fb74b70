package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "absent"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := c.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(value) != "v1" {
		t.Fatalf("expected v1, got %s", value)
	}
}

func TestRedisCacheInvalidatePrefix(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()

	prefix := OwnerPrefix("marche", "m1")
	keys := []string{prefix + "daily:-:-", prefix + "monthly:2026", prefix + "forecast:2026-06-30"}
	for _, key := range keys {
		if err := c.Set(ctx, key, []byte("view"), time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	other := OwnerPrefix("marche", "m2") + "daily:-:-"
	if err := c.Set(ctx, other, []byte("view"), time.Minute); err != nil {
		t.Fatalf("set other: %v", err)
	}

	if err := c.InvalidatePrefix(ctx, prefix); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	for _, key := range keys {
		if _, ok, _ := c.Get(ctx, key); ok {
			t.Fatalf("key %s survived invalidation", key)
		}
	}
	if _, ok, _ := c.Get(ctx, other); !ok {
		t.Fatal("unrelated owner namespace was invalidated")
	}
}
