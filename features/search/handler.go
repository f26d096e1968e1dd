package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LatVAlY/specWise/internal/middleware"
	"github.com/LatVAlY/specWise/internal/retrieval"
)

const maxLimit = 100

type Searcher interface {
	Search(ctx context.Context, query string, opts *retrieval.SearchOptions) ([]retrieval.SearchResult, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(s Searcher) *Handler {
	return &Handler{searcher: s}
}

// Search serves GET /collections/{id}/search?q=...&limit=&alpha=&job_id=&sku=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Query parameter q is required", http.StatusBadRequest)
		return
	}

	opts := &retrieval.SearchOptions{
		Filter: retrieval.Filter{
			CollectionID: r.PathValue("id"),
			JobID:        q.Get("job_id"),
			SKU:          q.Get("sku"),
		},
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			h.writeError(ctx, w, "VALIDATION_ERROR", "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		opts.Limit = &limit
	}
	if v := q.Get("alpha"); v != "" {
		alpha, err := strconv.ParseFloat(v, 32)
		if err != nil || alpha < 0 || alpha > 1 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "alpha must be within [0,1]", http.StatusBadRequest)
			return
		}
		a := float32(alpha)
		opts.Alpha = &a
	}

	results, err := h.searcher.Search(ctx, query, opts)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "search failed", "error", err, "collection_id", opts.Filter.CollectionID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []retrieval.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
