package repository

import (
	"context"
	"errors"

	"confidee-relayer/internal/model"
)

// ErrSessionNotFound covers unknown, deleted and expired tokens alike.
var ErrSessionNotFound = errors.New("session not found or expired")

// SessionStore owns every session record. Get must treat an expired record
// as missing and delete it, so an expired token can never be resurrected.
type SessionStore interface {
	Put(ctx context.Context, token string, session model.Session) error
	Get(ctx context.Context, token string) (model.Session, error)
	Delete(ctx context.Context, token string) error

	// Sweep removes records with ExpiresAt <= now and reports how many it
	// removed. Backends with native expiry may return 0.
	Sweep(ctx context.Context) (int, error)
}
