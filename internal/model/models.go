package model

import (
	"time"

	"github.com/google/uuid"
)

// -------------------- SESSION MODEL --------------------

// Session is the authenticated principal behind a bearer token. Records are
// immutable after creation; only deletion mutates the store.
type Session struct {
	Address   string    `json:"address"`    // lowercase 0x-prefixed wallet address
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // valid iff now < ExpiresAt
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// -------------------- RATE LIMIT MODEL --------------------

// RateLimitInfo is the read-only quota projection shown to clients.
type RateLimitInfo struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// -------------------- RELAY MODEL --------------------

const (
	ActionLike    = "like"
	ActionUnlike  = "unlike"
	ActionComment = "comment"
	ActionPost    = "post"
)

// RelayPayload carries the action-specific arguments.
type RelayPayload struct {
	SecretID FlexibleID `json:"secretId,omitempty"`
	Content  string     `json:"content,omitempty"`
}

// RelayRequest lives only for the duration of one relay call.
type RelayRequest struct {
	Action         string       `json:"action"`
	SessionToken   string       `json:"sessionToken"`
	Data           RelayPayload `json:"data"`
	IdempotencyKey string       `json:"-"`
}

// RelayResult is returned once the relayed transaction is confirmed.
type RelayResult struct {
	TxHash   string `json:"txHash"`
	SecretID string `json:"secretId,omitempty"`
}

// -------------------- AUDIT EVENT MODEL --------------------

const (
	RelayStatusConfirmed = "confirmed"
	RelayStatusFailed    = "failed"
	RelayStatusRejected  = "rejected"
)

// RelayEvent records the terminal state of a relay call that got past quota.
type RelayEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Action     string    `json:"action"`
	Address    string    `json:"address"`
	Status     string    `json:"status"`
	TxHash     string    `json:"tx_hash,omitempty"`
	SecretID   string    `json:"secret_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}
