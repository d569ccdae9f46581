// Package events ships relay audit events to the configured sinks.
package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"confidee-relayer/internal/model"
)

// Publisher accepts one relay event. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event model.RelayEvent) error
}

// Sink is a named Publisher so fan-out failures can be attributed.
type Sink interface {
	Publisher
	Name() string
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.RelayEvent) error { return nil }

const defaultPublishTimeout = 5 * time.Second

// MultiPublisher writes each event to every sink concurrently. A failing
// sink does not stop the others.
type MultiPublisher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
}

func NewMultiPublisher(logger *zap.Logger, sinks ...Sink) *MultiPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiPublisher{
		sinks:   sinks,
		timeout: defaultPublishTimeout,
		logger:  logger,
	}
}

func (m *MultiPublisher) Len() int { return len(m.sinks) }

// Publish returns the first sink error after all sinks have finished.
func (m *MultiPublisher) Publish(ctx context.Context, event model.RelayEvent) error {
	if len(m.sinks) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range m.sinks {
		g.Go(func() error {
			if err := sink.Publish(ctx, event); err != nil {
				m.logger.Warn("Relay event sink failed",
					zap.String("sink", sink.Name()),
					zap.String("event_id", event.EventID.String()),
					zap.Error(err))
				return fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
