package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/middleware"
	"github.com/LatVAlY/specWise/internal/retrieval"
)

type JobCounter interface {
	Counts(ctx context.Context) (map[job.Status]int, error)
}

type ItemCounter interface {
	CountItems(ctx context.Context, f retrieval.Filter) (int, error)
}

type Handler struct {
	jobs  JobCounter
	items ItemCounter
}

// NewHandler builds the stats handler. items may be nil when no vector index
// is configured; indexed_items is then reported as zero.
func NewHandler(j JobCounter, i ItemCounter) *Handler {
	return &Handler{jobs: j, items: i}
}

type StatsResponse struct {
	Jobs         map[job.Status]int `json:"jobs"`
	TotalJobs    int                `json:"total_jobs"`
	ActiveJobs   int                `json:"active_jobs"`
	FailedJobs   int                `json:"failed_jobs"`
	IndexedItems int                `json:"indexed_items"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	counts, err := h.jobs.Counts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{Jobs: make(map[job.Status]int, len(counts))}
	for status, n := range counts {
		resp.Jobs[status] = n
		resp.TotalJobs += n
		if !status.Terminal() {
			resp.ActiveJobs += n
		}
	}
	resp.FailedJobs = counts[job.StatusFailed]

	if h.items != nil {
		n, err := h.items.CountItems(ctx, retrieval.Filter{CollectionID: r.URL.Query().Get("collection_id")})
		if err != nil {
			slog.ErrorContext(ctx, "failed to count indexed items", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count indexed items", http.StatusInternalServerError)
			return
		}
		resp.IndexedItems = n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
