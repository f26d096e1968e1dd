package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/middleware"
)

// IndexPublisher hands the items of a completed job to the index topic.
type IndexPublisher struct {
	pub TaskPublisher
}

func NewIndexPublisher(p TaskPublisher) *IndexPublisher {
	return &IndexPublisher{pub: p}
}

func (p *IndexPublisher) Index(ctx context.Context, j *job.Job, items []classify.Item) error {
	correlationID := middleware.GetCorrelationID(ctx)
	for i, it := range items {
		body, err := json.Marshal(IndexPayload{
			JobID:         j.ID,
			CollectionID:  j.CollectionID,
			DocumentID:    j.DocumentID,
			Position:      i,
			SKU:           it.SKU,
			Name:          it.Name,
			Text:          it.Text,
			Quantity:      it.Quantity,
			QuantityUnit:  it.QuantityUnit,
			Commission:    it.Commission,
			CorrelationID: correlationID,
		})
		if err != nil {
			return err
		}
		if err := p.pub.Publish(config.TopicIndex, body); err != nil {
			return fmt.Errorf("publish item %d of %d: %w", i+1, len(items), err)
		}
	}
	slog.DebugContext(ctx, "published items for indexing", "count", len(items))
	return nil
}
