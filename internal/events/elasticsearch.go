package events

import (
	"context"

	"confidee-relayer/internal/model"
)

// Indexer is satisfied by client.ESClient.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, document interface{}) error
}

// ElasticsearchSink stores one document per event, keyed by event id, so a
// replayed publish overwrites instead of duplicating.
type ElasticsearchSink struct {
	es    Indexer
	index string
}

func NewElasticsearchSink(es Indexer, index string) *ElasticsearchSink {
	return &ElasticsearchSink{es: es, index: index}
}

func (e *ElasticsearchSink) Name() string { return "elasticsearch" }

func (e *ElasticsearchSink) Publish(ctx context.Context, event model.RelayEvent) error {
	return e.es.IndexDocument(ctx, e.index, event.EventID.String(), event)
}
