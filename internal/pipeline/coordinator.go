package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/extract"
	"github.com/LatVAlY/specWise/internal/middleware"
	"github.com/LatVAlY/specWise/internal/reconcile"
	"github.com/LatVAlY/specWise/internal/reference"
	"github.com/LatVAlY/specWise/internal/text"
)

// Repository is the part of the job store the coordinator writes through.
type Repository interface {
	Get(ctx context.Context, id string) (*job.Job, error)
	Transition(ctx context.Context, id string, to job.Status) error
	UpdateProgress(ctx context.Context, id, description string) error
	Fail(ctx context.Context, id string, kind job.ErrorKind, message string) error
	CompleteWithResult(ctx context.Context, id string, items []classify.Item) error
	SaveCheckpoint(ctx context.Context, cp job.Checkpoint) error
	LoadCheckpoint(ctx context.Context, jobID string) (*job.Checkpoint, error)
}

type PageSource interface {
	GetPages(ctx context.Context, documentID string) ([]string, error)
}

type Extractor interface {
	ExtractAll(ctx context.Context, chunks []text.Chunk, hooks extract.Hooks) (extract.Result, error)
}

type Resolver interface {
	Resolve(items []reconcile.Item) []reference.Item
}

type Classifier interface {
	Classify(ctx context.Context, items []reference.Item, hooks classify.Hooks) ([]classify.Item, error)
}

// Indexer receives the items of a completed job. Its failures never touch the job.
type Indexer interface {
	Index(ctx context.Context, j *job.Job, items []classify.Item) error
}

type Deps struct {
	Repo       Repository
	Pages      PageSource
	Extractor  Extractor
	Resolver   Resolver
	Classifier Classifier
	Indexer    Indexer
	WindowSize int
}

type Coordinator struct {
	repo       Repository
	pages      PageSource
	extractor  Extractor
	resolver   Resolver
	classifier Classifier
	indexer    Indexer
	windowSize int
}

func NewCoordinator(d Deps) *Coordinator {
	size := d.WindowSize
	if size == 0 {
		size = 2
	}
	return &Coordinator{
		repo:       d.Repo,
		pages:      d.Pages,
		extractor:  d.Extractor,
		resolver:   d.Resolver,
		classifier: d.Classifier,
		indexer:    d.Indexer,
		windowSize: size,
	}
}

// Run drives one job from PENDING to a terminal state. Re-delivery of a
// terminal or deleted job is a no-op, and stages recorded in the job's
// checkpoint are not repeated. Stage failures end as FAILED on the job
// record; Run only returns an error when that record cannot be written or
// ctx ends before the job does.
func (c *Coordinator) Run(ctx context.Context, jobID string) error {
	ctx = middleware.WithJobID(ctx, jobID)

	j, err := c.repo.Get(ctx, jobID)
	if errors.Is(err, job.ErrNotFound) {
		slog.WarnContext(ctx, "job vanished before processing")
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "load job", Err: err}
	}
	if j.Status.Terminal() {
		slog.InfoContext(ctx, "job already finished, skipping", "status", j.Status)
		return nil
	}

	if err := c.start(ctx, j); err != nil {
		if errors.Is(err, ErrCanceled) {
			return nil
		}
		return err
	}

	slog.InfoContext(ctx, "processing job", "document_id", j.DocumentID)
	err = c.execute(ctx, j)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCanceled):
		slog.InfoContext(ctx, "job canceled, stopping")
		return nil
	case ctx.Err() != nil:
		// Worker shutdown. The job stays IN_PROGRESS for the next delivery.
		return ctx.Err()
	}

	kind := errorKind(err)
	slog.ErrorContext(ctx, "job failed", "kind", kind, "error", err)
	if ferr := c.repo.Fail(ctx, jobID, kind, err.Error()); ferr != nil {
		if errors.Is(ferr, job.ErrInvalidTransition) || errors.Is(ferr, job.ErrNotFound) {
			return nil
		}
		return &PersistenceError{Op: "fail job", Err: ferr}
	}
	return nil
}

// start brings a PENDING or interrupted job into IN_PROGRESS.
func (c *Coordinator) start(ctx context.Context, j *job.Job) error {
	if j.Status == job.StatusInProgress {
		return nil
	}
	err := c.repo.Transition(ctx, j.ID, job.StatusInProgress)
	if errors.Is(err, job.ErrInvalidTransition) || errors.Is(err, job.ErrNotFound) {
		return ErrCanceled
	}
	if err != nil {
		return &PersistenceError{Op: "start job", Err: err}
	}
	j.Status = job.StatusInProgress
	return nil
}

// poll reports ErrCanceled once the job has left IN_PROGRESS.
func (c *Coordinator) poll(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j, err := c.repo.Get(ctx, id)
	if errors.Is(err, job.ErrNotFound) {
		return ErrCanceled
	}
	if err != nil {
		return &PersistenceError{Op: "poll status", Err: err}
	}
	if j.Status != job.StatusInProgress {
		return ErrCanceled
	}
	return nil
}

func (c *Coordinator) progress(ctx context.Context, id, status string) {
	if err := c.repo.UpdateProgress(ctx, id, status); err != nil && !errors.Is(err, job.ErrInvalidTransition) {
		slog.WarnContext(ctx, "failed to record progress", "status", status, "error", err)
	}
}

func (c *Coordinator) execute(ctx context.Context, j *job.Job) error {
	var raw []extract.RawItem
	var resolved []reference.Item

	stage, err := c.restore(ctx, j.ID, &raw, &resolved)
	if err != nil {
		return err
	}

	if stage == "" {
		if err := c.poll(ctx, j.ID); err != nil {
			return err
		}
		if raw, err = c.extract(ctx, j); err != nil {
			return err
		}
		if err := c.checkpoint(ctx, j.ID, job.StageExtracted, raw); err != nil {
			return err
		}
		stage = job.StageExtracted
	}

	if stage == job.StageExtracted {
		if err := c.poll(ctx, j.ID); err != nil {
			return err
		}
		c.progress(ctx, j.ID, "Resolving references")
		resolved = c.resolver.Resolve(reconcile.Reconcile(raw))
		if err := c.checkpoint(ctx, j.ID, job.StageResolved, resolved); err != nil {
			return err
		}
	}

	if err := c.poll(ctx, j.ID); err != nil {
		return err
	}
	items, err := c.classifier.Classify(ctx, resolved, classify.Hooks{
		Progress:   func(ctx context.Context, s string) { c.progress(ctx, j.ID, s) },
		Checkpoint: func(ctx context.Context) error { return c.poll(ctx, j.ID) },
	})
	if err != nil {
		return err
	}

	if err := c.poll(ctx, j.ID); err != nil {
		return err
	}
	if err := c.finish(ctx, j.ID, items); err != nil {
		return err
	}
	slog.InfoContext(ctx, "job completed", "items", len(items))

	if c.indexer != nil && len(items) > 0 {
		if err := c.indexer.Index(ctx, j, items); err != nil {
			slog.WarnContext(ctx, "failed to index items", "error", err)
		}
	}
	return nil
}

func (c *Coordinator) extract(ctx context.Context, j *job.Job) ([]extract.RawItem, error) {
	texts, err := c.pages.GetPages(ctx, j.DocumentID)
	if err != nil {
		return nil, &stageError{kind: job.ErrorKindPageSource, err: fmt.Errorf("load pages: %w", err)}
	}
	pages := text.CleanPages(text.Pages(texts))

	// Documents shorter than the window are read as one chunk.
	size := min(c.windowSize, len(pages))
	seq, err := text.Window(pages, size)
	if err != nil {
		return nil, &stageError{kind: job.ErrorKindInvalidWindow, err: err}
	}
	chunks := slices.Collect(seq)

	res, err := c.extractor.ExtractAll(ctx, chunks, extract.Hooks{
		Progress:   func(ctx context.Context, s string) { c.progress(ctx, j.ID, s) },
		Checkpoint: func(ctx context.Context) error { return c.poll(ctx, j.ID) },
	})
	if err != nil {
		return nil, err
	}
	if len(res.Failed) > 0 {
		slog.WarnContext(ctx, "some chunks could not be extracted", "failed", len(res.Failed), "chunks", res.Chunks)
	}
	return res.Items, nil
}

// finish moves the job through UPDATING and stores the result. A cancel that
// lands in between wins and nothing is written.
func (c *Coordinator) finish(ctx context.Context, id string, items []classify.Item) error {
	err := c.repo.Transition(ctx, id, job.StatusUpdating)
	if errors.Is(err, job.ErrInvalidTransition) || errors.Is(err, job.ErrNotFound) {
		return ErrCanceled
	}
	if err != nil {
		return &PersistenceError{Op: "mark updating", Err: err}
	}

	err = c.repo.CompleteWithResult(ctx, id, items)
	if errors.Is(err, job.ErrInvalidTransition) || errors.Is(err, job.ErrNotFound) {
		return ErrCanceled
	}
	if err != nil {
		return &PersistenceError{Op: "save result", Err: err}
	}
	return nil
}

func (c *Coordinator) checkpoint(ctx context.Context, id string, stage job.Stage, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s checkpoint: %w", stage, err)
	}
	err = c.repo.SaveCheckpoint(ctx, job.Checkpoint{JobID: id, Stage: stage, Payload: payload})
	if errors.Is(err, job.ErrInvalidTransition) || errors.Is(err, job.ErrNotFound) {
		return ErrCanceled
	}
	if err != nil {
		return &PersistenceError{Op: "save checkpoint", Err: err}
	}
	return nil
}

// restore loads the last checkpoint into raw or resolved and returns its stage.
// An unreadable checkpoint is ignored and the job starts over.
func (c *Coordinator) restore(ctx context.Context, id string, raw *[]extract.RawItem, resolved *[]reference.Item) (job.Stage, error) {
	cp, err := c.repo.LoadCheckpoint(ctx, id)
	if err != nil {
		return "", &PersistenceError{Op: "load checkpoint", Err: err}
	}
	if cp == nil {
		return "", nil
	}

	var target any
	switch cp.Stage {
	case job.StageExtracted:
		target = raw
	case job.StageResolved:
		target = resolved
	default:
		slog.WarnContext(ctx, "unknown checkpoint stage, starting over", "stage", cp.Stage)
		return "", nil
	}
	if err := json.Unmarshal(cp.Payload, target); err != nil {
		slog.WarnContext(ctx, "unreadable checkpoint, starting over", "stage", cp.Stage, "error", err)
		return "", nil
	}
	slog.InfoContext(ctx, "resuming from checkpoint", "stage", cp.Stage)
	return cp.Stage, nil
}
