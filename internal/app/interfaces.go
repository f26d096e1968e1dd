package app

import (
	"context"

	"github.com/LatVAlY/specWise/internal/retrieval"
	"github.com/LatVAlY/specWise/internal/worker"
)

// VectorStore is the line item index the API and index worker share.
type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	StoreItem(ctx context.Context, item worker.LineItem) error
	DeleteByJob(ctx context.Context, jobID string) error
	Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, f retrieval.Filter) ([]retrieval.SearchResult, error)
	CountItems(ctx context.Context, f retrieval.Filter) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}
