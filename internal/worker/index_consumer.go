package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/LatVAlY/specWise/internal/middleware"
)

const embedTimeout = 60 * time.Second

// IndexConsumer embeds line items from the index topic and stores them in the vector index.
type IndexConsumer struct {
	embedder Embedder
	store    ItemStore
}

func NewIndexConsumer(e Embedder, s ItemStore) *IndexConsumer {
	return &IndexConsumer{
		embedder: e,
		store:    s,
	}
}

func (h *IndexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IndexPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.JobID == "" || strings.TrimSpace(payload.Text) == "" {
		slog.Warn("dropping index message without job or text", "job_id", payload.JobID)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx = middleware.WithJobID(ctx, payload.JobID)

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vector, err := h.embedder.Embed(embedCtx, contextualString(payload))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err, "position", payload.Position)
		return err // Retry
	}

	item := LineItem{
		Content:      payload.Text,
		Vector:       vector,
		JobID:        payload.JobID,
		CollectionID: payload.CollectionID,
		DocumentID:   payload.DocumentID,
		Position:     payload.Position,
		SKU:          payload.SKU,
		Name:         payload.Name,
		Commission:   payload.Commission,
		Quantity:     payload.Quantity,
		QuantityUnit: payload.QuantityUnit,
	}
	if err := h.store.StoreItem(embedCtx, item); err != nil {
		slog.ErrorContext(ctx, "store item failed", "error", err, "position", payload.Position)
		return err // Retry
	}

	slog.InfoContext(ctx, "line item indexed", "position", payload.Position, "sku", payload.SKU)
	return nil
}

// contextualString prefixes the item text with its classification so that
// similar items of the same category land close together.
func contextualString(p IndexPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position: %s\nCategory: %s\nSKU: %s", p.Commission, p.Name, p.SKU)
	if p.Quantity > 0 {
		fmt.Fprintf(&b, "\nQuantity: %g %s", p.Quantity, p.QuantityUnit)
	}
	fmt.Fprintf(&b, "\n---\n%s", p.Text)
	return b.String()
}
