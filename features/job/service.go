package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/middleware"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("timeout waiting for NSQ publish")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// ItemIndex removes a job's line items from the vector index.
type ItemIndex interface {
	DeleteByJob(ctx context.Context, jobID string) error
}

type CreateRequest struct {
	CollectionID string `json:"collection_id"`
	DocumentID   string `json:"document_id"`
	FileName     string `json:"file_name"`
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	index  ItemIndex
	logger *slog.Logger
}

func NewService(repo Repository, pub EventPublisher, index ItemIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, index: index, logger: logger}
}

// Create stores a PENDING job and dispatches it to the process topic.
// A dispatch failure fails the job instead of the request.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Job, error) {
	if req.CollectionID == "" || req.DocumentID == "" {
		return nil, fmt.Errorf("%w: collection_id and document_id are required", ErrInvalidRequest)
	}

	j := &Job{
		CollectionID: req.CollectionID,
		DocumentID:   req.DocumentID,
		FileName:     req.FileName,
		Status:       StatusPending,
		Description:  "Queued",
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	if err := s.dispatch(ctx, j.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish process event", "job_id", j.ID, "error", err)
		if ferr := s.repo.Fail(ctx, j.ID, ErrorKindDispatch, err.Error()); ferr != nil {
			return nil, ferr
		}
		j.Status = StatusFailed
		j.ErrorKind = ErrorKindDispatch
		j.ErrorMessage = err.Error()
		return j, nil
	}

	s.logger.InfoContext(ctx, "published process event", "job_id", j.ID, "document_id", j.DocumentID)
	return j, nil
}

func (s *Service) dispatch(ctx context.Context, id string) error {
	if s.pub == nil {
		return errors.New("no publisher configured")
	}
	payload, err := json.Marshal(ProcessMessage{JobID: id, CorrelationID: middleware.GetCorrelationID(ctx)})
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.pub.Publish(config.TopicProcess, payload) }()

	select {
	case err := <-done:
		return err
	case <-time.After(publishTimeout):
		return errPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Job, error) {
	return s.repo.List(ctx, f)
}

// Cancel stops a job that has not finished. The worker notices at its next poll.
func (s *Service) Cancel(ctx context.Context, id string) (*Job, error) {
	err := s.repo.Cancel(ctx, id)
	if errors.Is(err, ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: %v", ErrTerminal, err)
	}
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteByJob(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to delete indexed items", "job_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) Items(ctx context.Context, id string) ([]classify.Item, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: job is %s", ErrNotCompleted, j.Status)
	}
	return s.repo.GetResult(ctx, id)
}

// ExportXML renders the items of a completed job whose commission is selected.
func (s *Service) ExportXML(ctx context.Context, id string, commissions []string) ([]byte, error) {
	if len(commissions) == 0 {
		return nil, fmt.Errorf("%w: no commissions selected", ErrInvalidRequest)
	}
	items, err := s.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	selected := selectItems(items, commissions)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no items match the selected commissions", ErrInvalidRequest)
	}
	return MarshalXML(selected)
}

// Retry starts a fresh job for the document of a failed or canceled one.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != StatusFailed && old.Status != StatusCanceled {
		return nil, fmt.Errorf("%w: cannot retry a %s job", ErrInvalidTransition, old.Status)
	}
	return s.Create(ctx, CreateRequest{
		CollectionID: old.CollectionID,
		DocumentID:   old.DocumentID,
		FileName:     old.FileName,
	})
}

// ResetStuckJobs fails jobs that stopped reporting progress more than timeout ago.
func (s *Service) ResetStuckJobs(ctx context.Context, timeout time.Duration) (int, error) {
	n, err := s.repo.FailStuck(ctx, time.Now().Add(-timeout))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WarnContext(ctx, "failed stalled jobs", "count", n, "timeout", timeout)
	}
	return n, nil
}

func (s *Service) Counts(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}
