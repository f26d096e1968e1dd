package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/middleware"
)

const defaultTouchInterval = 30 * time.Second

// ProcessConsumer runs one job per message from the process topic.
type ProcessConsumer struct {
	ctx           context.Context
	runner        JobRunner
	touchInterval time.Duration
}

// NewProcessConsumer builds a consumer whose runs end when ctx does.
func NewProcessConsumer(ctx context.Context, r JobRunner, touchInterval time.Duration) *ProcessConsumer {
	if touchInterval <= 0 {
		touchInterval = defaultTouchInterval
	}
	return &ProcessConsumer{ctx: ctx, runner: r, touchInterval: touchInterval}
}

func (h *ProcessConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload job.ProcessMessage
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.JobID == "" {
		slog.Error("poison pill: missing job id")
		return nil
	}

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(h.ctx, correlationID)

	stop := h.keepAlive(m)
	defer stop()

	if err := h.runner.Run(ctx, payload.JobID); err != nil {
		slog.ErrorContext(ctx, "job run failed, requeueing", "job_id", payload.JobID, "attempts", m.Attempts, "error", err)
		return err
	}
	return nil
}

// keepAlive touches m until stop is called so nsqd does not redeliver a long job.
func (h *ProcessConsumer) keepAlive(m *nsq.Message) (stop func()) {
	if m.Delegate == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(h.touchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Touch()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
