package redis_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"confidee-relayer/internal/client"
	"confidee-relayer/internal/hashing"
	"confidee-relayer/internal/model"
	"confidee-relayer/internal/repository"
	rediscache "confidee-relayer/internal/repository/redis"
)

// getRedisClient starts an in-process miniredis server for the test.
func getRedisClient(t *testing.T) (*client.RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("miniredis not reachable: %v", err)
	}
	return client.NewRedisClientFrom(rdb), mr
}

func TestSessionCacheRoundTrip(t *testing.T) {
	rc, _ := getRedisClient(t)
	hasher, err := hashing.NewTokenHasher("test-pepper")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	cache := rediscache.NewSessionCache(rc, hasher, nil)
	token := uuid.NewString()

	want := model.Session{Address: "0xabc", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := cache.Put(ctx, token, want); err != nil {
		t.Fatal(err)
	}
	got, err := cache.Get(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != want.Address {
		t.Fatalf("expected %s got %s", want.Address, got.Address)
	}

	if err := cache.Delete(ctx, token); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound got %v", err)
	}
}

func TestSessionCacheExpiredRecord(t *testing.T) {
	rc, _ := getRedisClient(t)
	hasher, _ := hashing.NewTokenHasher("test-pepper")
	ctx := context.Background()

	now := time.Now()
	clock := func() time.Time { return now }
	cache := rediscache.NewSessionCache(rc, hasher, clock)
	token := uuid.NewString()

	_ = cache.Put(ctx, token, model.Session{Address: "0xabc", ExpiresAt: now.Add(time.Hour)})
	now = now.Add(2 * time.Hour)

	if _, err := cache.Get(ctx, token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound got %v", err)
	}
	now = now.Add(-2 * time.Hour)
	if _, err := cache.Get(ctx, token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected expired record to stay deleted got %v", err)
	}
}

func TestRateLimitCacheAtomic(t *testing.T) {
	rc, _ := getRedisClient(t)
	ctx := context.Background()
	cache := rediscache.NewRateLimitCache(rc)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = rc.Del(ctx, "rate_limit:"+key) })

	const limit = 10
	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := cache.IncrementIfBelow(ctx, key, limit, time.Now().Add(time.Minute))
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != limit {
		t.Fatalf("expected %d grants got %d", limit, granted.Load())
	}
	count, err := cache.Count(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if count != limit {
		t.Fatalf("expected count %d got %d", limit, count)
	}
}

func TestRateLimitCacheMissingKey(t *testing.T) {
	rc, _ := getRedisClient(t)
	cache := rediscache.NewRateLimitCache(rc)

	count, err := cache.Count(context.Background(), "test:"+uuid.NewString())
	if err != nil || count != 0 {
		t.Fatalf("expected (0, nil) got (%d, %v)", count, err)
	}
}

func TestSessionCacheSetsNativeTTL(t *testing.T) {
	rc, mr := getRedisClient(t)
	hasher, _ := hashing.NewTokenHasher("test-pepper")
	ctx := context.Background()

	now := time.Now()
	cache := rediscache.NewSessionCache(rc, hasher, func() time.Time { return now })
	token := uuid.NewString()

	if err := cache.Put(ctx, token, model.Session{Address: "0xabc", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	key := "session:" + hasher.Digest(token)
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected ttl within an hour got %v", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if mr.Exists(key) {
		t.Fatal("expected redis to expire the session key")
	}
}

func TestRateLimitCacheRejectsWithoutIncrement(t *testing.T) {
	rc, mr := getRedisClient(t)
	ctx := context.Background()
	cache := rediscache.NewRateLimitCache(rc)
	key := "test:" + uuid.NewString()
	resetAt := time.Now().Add(time.Hour)

	for i := 1; i <= 2; i++ {
		ok, count, err := cache.IncrementIfBelow(ctx, key, 2, resetAt)
		if err != nil || !ok || count != i {
			t.Fatalf("call %d: expected (true, %d, nil) got (%v, %d, %v)", i, i, ok, count, err)
		}
	}

	ok, count, err := cache.IncrementIfBelow(ctx, key, 2, resetAt)
	if err != nil || ok || count != 2 {
		t.Fatalf("expected (false, 2, nil) got (%v, %d, %v)", ok, count, err)
	}
	if got, _ := mr.Get("rate_limit:" + key); got != "2" {
		t.Fatalf("expected stored counter 2 got %q", got)
	}
}

func TestRateLimitCacheExpiryPinnedToReset(t *testing.T) {
	rc, mr := getRedisClient(t)
	ctx := context.Background()
	cache := rediscache.NewRateLimitCache(rc)
	key := "test:" + uuid.NewString()
	redisKey := "rate_limit:" + key
	resetAt := time.Now().Add(time.Hour)

	if _, _, err := cache.IncrementIfBelow(ctx, key, 5, resetAt); err != nil {
		t.Fatal(err)
	}
	first := mr.TTL(redisKey)
	if first <= 0 || first > time.Hour {
		t.Fatalf("expected ttl within an hour got %v", first)
	}

	// a later increment with a different reset must not move the expiry
	if _, _, err := cache.IncrementIfBelow(ctx, key, 5, resetAt.Add(24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(redisKey); ttl > first {
		t.Fatalf("expected expiry to stay pinned, ttl grew from %v to %v", first, ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	count, err := cache.Count(ctx, key)
	if err != nil || count != 0 {
		t.Fatalf("expected counter reset after expiry got (%d, %v)", count, err)
	}
}

func TestRateLimitCacheCountIsReadOnly(t *testing.T) {
	rc, _ := getRedisClient(t)
	ctx := context.Background()
	cache := rediscache.NewRateLimitCache(rc)
	key := "test:" + uuid.NewString()

	if _, _, err := cache.IncrementIfBelow(ctx, key, 3, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if count, err := cache.Count(ctx, key); err != nil || count != 1 {
			t.Fatalf("expected (1, nil) got (%d, %v)", count, err)
		}
	}
	ok, count, err := cache.IncrementIfBelow(ctx, key, 3, time.Now().Add(time.Hour))
	if err != nil || !ok || count != 2 {
		t.Fatalf("expected (true, 2, nil) got (%v, %d, %v)", ok, count, err)
	}
}
