package events

import (
	"context"
	"fmt"

	"confidee-relayer/internal/model"
)

// Execer is satisfied by client.ClickHouseClient.
type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

const createRelayEventsTable = `
CREATE TABLE IF NOT EXISTS relay_events (
    event_id    UUID,
    action      LowCardinality(String),
    address     String,
    status      LowCardinality(String),
    tx_hash     String,
    secret_id   String,
    error       String,
    duration_ms Int64,
    occurred_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(occurred_at)
ORDER BY (address, occurred_at)`

const insertRelayEvent = `
INSERT INTO relay_events
    (event_id, action, address, status, tx_hash, secret_id, error, duration_ms, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type ClickHouseSink struct {
	db Execer
}

func NewClickHouseSink(db Execer) *ClickHouseSink {
	return &ClickHouseSink{db: db}
}

func (c *ClickHouseSink) Name() string { return "clickhouse" }

func (c *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	if err := c.db.Exec(ctx, createRelayEventsTable); err != nil {
		return fmt.Errorf("failed to create relay_events: %w", err)
	}
	return nil
}

func (c *ClickHouseSink) Publish(ctx context.Context, event model.RelayEvent) error {
	return c.db.Exec(ctx, insertRelayEvent,
		event.EventID.String(),
		event.Action,
		event.Address,
		event.Status,
		event.TxHash,
		event.SecretID,
		event.Error,
		event.DurationMs,
		event.OccurredAt.UTC(),
	)
}
