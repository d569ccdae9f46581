package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"confidee-relayer/internal/client"
	"confidee-relayer/internal/hashing"
	"confidee-relayer/internal/model"
	"confidee-relayer/internal/repository"
	"confidee-relayer/internal/util"
)

const sessionPrefix = "session:"

// SessionCache stores sessions under a keyed digest of the token, with a
// native TTL matching ExpiresAt.
type SessionCache struct {
	client *client.RedisClient
	hasher *hashing.TokenHasher
	now    func() time.Time
}

func NewSessionCache(client *client.RedisClient, hasher *hashing.TokenHasher, now func() time.Time) *SessionCache {
	if now == nil {
		now = time.Now
	}
	return &SessionCache{client: client, hasher: hasher, now: now}
}

func (c *SessionCache) key(token string) (string, string) {
	digest := c.hasher.Digest(token)
	return sessionPrefix + digest, digest
}

func (c *SessionCache) Put(ctx context.Context, token string, session model.Session) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ttl := session.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return fmt.Errorf("session expires_at must be in the future")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key, digest := c.key(token)
	if err := c.client.Set(ctx, key, data, ttl); err != nil {
		util.Error("Failed to store session",
			zap.String("token", util.ShortToken(digest)),
			zap.Error(err))
		return fmt.Errorf("failed to store session: %w", err)
	}

	util.Debug("Session stored",
		zap.String("token", util.ShortToken(digest)),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *SessionCache) Get(ctx context.Context, token string) (model.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key, digest := c.key(token)
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return model.Session{}, repository.ErrSessionNotFound
		}
		util.Error("Failed to get session",
			zap.String("token", util.ShortToken(digest)),
			zap.Error(err))
		return model.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return model.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// Redis expiry has millisecond granularity; the record's own deadline wins.
	if !session.Valid(c.now()) {
		_ = c.client.Del(ctx, key)
		return model.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (c *SessionCache) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key, digest := c.key(token)
	if err := c.client.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	util.Debug("Session deleted", zap.String("token", util.ShortToken(digest)))
	return nil
}

// Sweep is a no-op: Redis expires session keys natively.
func (c *SessionCache) Sweep(context.Context) (int, error) {
	return 0, nil
}
