package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/LatVAlY/specWise/internal/middleware"
)

var ErrEmptyQuery = errors.New("query must not be empty")

// SearchResult is one indexed line item matching a query.
type SearchResult struct {
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
	Name         string  `json:"name,omitempty"`
	SKU          string  `json:"sku,omitempty"`
	Commission   string  `json:"commission,omitempty"`
	Position     int     `json:"position"`
	Quantity     float64 `json:"quantity"`
	QuantityUnit string  `json:"quantity_unit,omitempty"`
	JobID        string  `json:"job_id"`
	DocumentID   string  `json:"document_id,omitempty"`
}

// Filter narrows a search to exact property values. Empty fields match all.
type Filter struct {
	CollectionID string
	JobID        string
	SKU          string
}

type SearchOptions struct {
	Alpha  *float32
	Limit  *int
	Filter Filter
}

// Defaults apply when a query does not set alpha or limit.
type Defaults struct {
	Alpha float32
	TopK  int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, filter Filter) ([]SearchResult, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	reranker Reranker
	defaults Defaults
	logger   *QueryLogger
}

// NewService builds the search service. r and l may be nil.
func NewService(e Embedder, s VectorStore, r Reranker, d Defaults, l *QueryLogger) *Service {
	if d.TopK <= 0 {
		d.TopK = 10
	}
	return &Service{embedder: e, store: s, reranker: r, defaults: d, logger: l}
}

// Search embeds the query and runs a hybrid (BM25 + vector) search over the
// stored line items.
func (s *Service) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	alpha := s.defaults.Alpha
	limit := s.defaults.TopK
	var filter Filter
	if opts != nil {
		if opts.Alpha != nil {
			alpha = *opts.Alpha
		}
		if opts.Limit != nil && *opts.Limit > 0 {
			limit = *opts.Limit
		}
		filter = opts.Filter
	}

	entry := QueryLogEntry{
		CorrelationID: middleware.GetCorrelationID(ctx),
		Query:         query,
		CollectionID:  filter.CollectionID,
		JobID:         filter.JobID,
		SKU:           filter.SKU,
		Alpha:         alpha,
		Limit:         limit,
	}
	results, err := s.search(ctx, query, alpha, limit, filter, &entry)
	if s.logger != nil {
		if err != nil {
			entry.Error = err.Error()
		}
		entry.NumResults = len(results)
		for _, r := range results {
			entry.SKUs = append(entry.SKUs, r.SKU)
		}
		s.logger.Record(entry, start)
	}
	return results, err
}

func (s *Service) search(ctx context.Context, query string, alpha float32, limit int, filter Filter, entry *QueryLogEntry) ([]SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.store.Search(ctx, query, vec, alpha, limit, filter)
	if err != nil {
		return nil, err
	}

	if s.reranker != nil && len(results) > 1 {
		results, err = s.rerank(ctx, query, results)
		if err != nil {
			return nil, err
		}
		entry.Reranked = true
	}
	return results, nil
}

func (s *Service) rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error) {
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}

	indices, err := s.reranker.Rerank(ctx, query, contents)
	if err != nil {
		return nil, err
	}

	reranked := make([]SearchResult, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(results) {
			reranked = append(reranked, results[idx])
		}
	}
	return reranked, nil
}
