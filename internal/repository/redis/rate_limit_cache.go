package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"confidee-relayer/internal/client"
	"confidee-relayer/internal/util"
)

const rateLimitPrefix = "rate_limit:"

// incrementIfBelow runs GET/compare/INCR as one atomic step. The expiry is
// set only when the counter is created, so it stays pinned to the day's reset.
var incrementIfBelow = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local expire_at_ms = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	if current >= limit then
		return {0, current}
	end

	current = redis.call('INCR', key)
	if current == 1 then
		redis.call('PEXPIREAT', key, expire_at_ms)
	end
	return {1, current}
`)

// RateLimitCache keeps daily quota counters in Redis.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

func (c *RateLimitCache) IncrementIfBelow(ctx context.Context, key string, limit int, expiresAt time.Time) (bool, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.client.RunScript(ctx, incrementIfBelow, []string{rateLimitPrefix + key},
		limit, expiresAt.UnixMilli())
	if err != nil {
		util.Error("Failed to execute rate limit script",
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Error(err))
		return false, 0, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return false, 0, fmt.Errorf("unexpected result format from rate limit script")
	}
	allowedFlag, ok1 := resultSlice[0].(int64)
	count, ok2 := resultSlice[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("unexpected result types from rate limit script")
	}

	return allowedFlag == 1, int(count), nil
}

func (c *RateLimitCache) Count(ctx context.Context, key string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	countStr, err := c.client.Get(ctx, rateLimitPrefix+key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get rate limit counter: %w", err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		util.Error("Invalid counter format",
			zap.String("key", key),
			zap.String("count_str", countStr),
			zap.Error(err))
		return 0, fmt.Errorf("invalid counter format: %w", err)
	}
	return count, nil
}
