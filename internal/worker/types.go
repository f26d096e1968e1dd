package worker

import (
	"context"
)

// LineItem is a classified item as stored in the vector index.
type LineItem struct {
	Content      string
	Vector       []float32
	JobID        string
	CollectionID string
	DocumentID   string
	Position     int
	SKU          string
	Name         string
	Commission   string
	Quantity     float64
	QuantityUnit string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ItemStore interface {
	StoreItem(ctx context.Context, item LineItem) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// JobRunner processes one job to completion.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}
