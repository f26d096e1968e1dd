package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LatVAlY/specWise/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid request body", http.StatusBadRequest)
		return
	}

	j, err := h.service.Create(ctx, req)
	if err != nil {
		h.handleServiceError(ctx, w, "create job", err)
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{"data": j})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	f := ListFilter{
		CollectionID: q.Get("collection_id"),
		Status:       Status(q.Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Unknown status", http.StatusBadRequest)
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = limit
	}

	jobs, err := h.service.List(ctx, f)
	if err != nil {
		h.handleServiceError(ctx, w, "list jobs", err)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	j, err := h.service.Get(ctx, id)
	if err != nil {
		h.handleServiceError(ctx, w, "get job", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": j})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	slog.InfoContext(ctx, "canceling job", "id", id)

	j, err := h.service.Cancel(ctx, id)
	if err != nil {
		h.handleServiceError(ctx, w, "cancel job", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": j})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Delete(ctx, id); err != nil {
		h.handleServiceError(ctx, w, "delete job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	items, err := h.service.Items(ctx, id)
	if err != nil {
		h.handleServiceError(ctx, w, "get job items", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": items,
		"meta": map[string]int{"count": len(items)},
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying job", "id", id)

	j, err := h.service.Retry(ctx, id)
	if err != nil {
		h.handleServiceError(ctx, w, "retry job", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{"data": j})
}

func (h *Handler) ExportXML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req struct {
		Commissions []string `json:"commissions"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	body, err := h.service.ExportXML(ctx, id, req.Commissions)
	if err != nil {
		h.handleServiceError(ctx, w, "export job xml", err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.xml"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(ctx, "failed to write xml response", "error", err)
	}
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidRequest):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrTerminal), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotCompleted):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
	default:
		slog.ErrorContext(ctx, "failed to "+op, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
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
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
