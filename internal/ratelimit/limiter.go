// Package ratelimit enforces fixed per-address daily quotas for relayed
// actions. Counters are keyed by (address, category, UTC calendar date) and
// become stale at the next UTC midnight.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"confidee-relayer/internal/model"
)

// DefaultQuota applies to action categories missing from the quota table.
const DefaultQuota = 10

var quotas = map[string]int{
	model.ActionPost:    10,
	model.ActionLike:    50,
	model.ActionUnlike:  50,
	model.ActionComment: 25,
}

// ReportedActions are the actions listed by Snapshot.
var ReportedActions = []string{model.ActionPost, model.ActionLike, model.ActionUnlike, model.ActionComment}

// CounterStore holds the daily counters. Both methods must be atomic with
// respect to concurrent callers on the same key.
type CounterStore interface {
	// IncrementIfBelow increments key and returns the new count when the
	// current count is below limit. Otherwise it changes nothing and returns
	// allowed=false with the current count. A missing or stale key counts
	// as zero; expiresAt is when a freshly created counter goes stale.
	IncrementIfBelow(ctx context.Context, key string, limit int, expiresAt time.Time) (allowed bool, count int, err error)

	// Count returns the current count for key, zero when absent or stale.
	Count(ctx context.Context, key string) (int, error)
}

// Category collapses actions that share a quota bucket.
func Category(action string) string {
	if action == model.ActionUnlike {
		return model.ActionLike
	}
	return action
}

// Quota returns the daily quota for action.
func Quota(action string) int {
	if q, ok := quotas[action]; ok {
		return q
	}
	return DefaultQuota
}

// Limiter is the process-wide quota gate.
type Limiter struct {
	store  CounterStore
	now    func() time.Time
	logger *zap.Logger
}

func NewLimiter(store CounterStore, now func() time.Time, logger *zap.Logger) *Limiter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, now: now, logger: logger}
}

// Check consumes one unit of today's quota for (address, action). true means
// the unit was counted; false means the quota is exhausted and nothing was
// consumed.
func (l *Limiter) Check(ctx context.Context, address, action string) (bool, error) {
	now := l.now().UTC()
	key := Key(address, action, now)
	limit := Quota(action)

	allowed, count, err := l.store.IncrementIfBelow(ctx, key, limit, NextReset(now))
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	l.logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Bool("allowed", allowed),
		zap.Int("count", count),
		zap.Int("limit", limit))

	return allowed, nil
}

// Info reports today's usage for (address, action) without mutating state.
func (l *Limiter) Info(ctx context.Context, address, action string) (model.RateLimitInfo, error) {
	now := l.now().UTC()
	limit := Quota(action)

	used, err := l.store.Count(ctx, Key(address, action, now))
	if err != nil {
		return model.RateLimitInfo{}, fmt.Errorf("rate limit info failed: %w", err)
	}
	if used > limit {
		used = limit
	}

	return model.RateLimitInfo{
		Used:      used,
		Limit:     limit,
		Remaining: limit - used,
		ResetAt:   NextReset(now),
	}, nil
}

// Snapshot returns Info for every reported action.
func (l *Limiter) Snapshot(ctx context.Context, address string) (map[string]model.RateLimitInfo, error) {
	out := make(map[string]model.RateLimitInfo, len(ReportedActions))
	for _, action := range ReportedActions {
		info, err := l.Info(ctx, address, action)
		if err != nil {
			return nil, err
		}
		out[action] = info
	}
	return out, nil
}

// Key builds the counter key for the UTC day containing now.
func Key(address, action string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", strings.ToLower(address), Category(action), now.UTC().Format("2006-01-02"))
}

// NextReset returns the next UTC midnight after now.
func NextReset(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
