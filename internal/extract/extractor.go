// Package extract turns page chunks into raw line items using a completion
// service, retrying with corrective feedback when the answer is unusable.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/LatVAlY/specWise/internal/completion"
	"github.com/LatVAlY/specWise/internal/text"
)

const (
	DefaultMaxRetries  = 3
	DefaultConcurrency = 4
)

// RawItem is one entry from an extraction answer. RefNo is not unique across chunks.
type RawItem struct {
	RefNo       string       `json:"ref_no"`
	Description string       `json:"description"`
	Quantity    float64      `json:"quantity"`
	Unit        string       `json:"unit"`
	SourceChunk text.ChunkID `json:"source_chunk"`
}

// Attempt counts completion calls for one chunk, starting at 1.
type Attempt int

// Transcript is the conversation sent on each attempt. After a rejected
// answer it holds the original chunk message, that answer and the feedback,
// so the conversation never grows beyond three messages.
type Transcript []completion.Message

func newTranscript(chunkMessage string) Transcript {
	return Transcript{{Role: completion.RoleUser, Content: chunkMessage}}
}

func (t Transcript) withFeedback(answer, feedback string) Transcript {
	return Transcript{
		t[0],
		{Role: completion.RoleAssistant, Content: answer},
		{Role: completion.RoleUser, Content: feedback},
	}
}

type Config struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries  int
	Concurrency int
	Prompts     Prompts
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:  DefaultMaxRetries,
		Concurrency: DefaultConcurrency,
		Prompts:     DefaultPrompts(),
	}
}

type Extractor struct {
	completer completion.Completer
	cfg       Config
}

func New(c completion.Completer, cfg Config) *Extractor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Prompts.System == "" {
		cfg.Prompts = DefaultPrompts()
	}
	return &Extractor{completer: c, cfg: cfg}
}

// Extract returns the line items found in one chunk. Invalid answers are
// retried without backoff up to MaxRetries times; when every attempt fails
// the error is an *ExtractionFailed. Context cancellation aborts at once.
func (e *Extractor) Extract(ctx context.Context, chunk text.Chunk) ([]RawItem, error) {
	maxAttempts := Attempt(e.cfg.MaxRetries + 1)
	transcript := newTranscript(e.cfg.Prompts.chunkMessage(chunk.Text))

	var lastErr error
	for attempt := Attempt(1); attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		answer, err := e.completer.Complete(ctx, completion.Request{
			System:   e.cfg.Prompts.System,
			Messages: transcript,
			JSON:     true,
			Schema:   answerSchema.Hint(),
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.WarnContext(ctx, "completion call failed", "pages", chunk.ID().String(), "attempt", int(attempt), "error", err)
			lastErr = err
			continue
		}

		items, err := parseItems(answer, chunk.ID())
		if err == nil {
			if len(items) == 0 {
				slog.DebugContext(ctx, "no items in chunk", "pages", chunk.ID().String())
			}
			return items, nil
		}

		lastErr = err
		var verr *ValidationError
		reason := err.Error()
		if errors.As(err, &verr) {
			reason = verr.Reason
		}
		slog.WarnContext(ctx, "extraction output rejected", "pages", chunk.ID().String(), "attempt", int(attempt), "reason", reason)
		transcript = transcript.withFeedback(answer, e.cfg.Prompts.feedbackMessage(reason))
	}

	return nil, &ExtractionFailed{Chunk: chunk.ID(), Attempts: maxAttempts, LastErr: lastErr}
}

// Hooks let the caller observe and interrupt ExtractAll. Both are optional
// and may be called from several goroutines at once.
type Hooks struct {
	// Progress receives a human readable status before each chunk.
	Progress func(ctx context.Context, status string)
	// Checkpoint is polled before each chunk; a non-nil error stops the run.
	Checkpoint func(ctx context.Context) error
}

type Result struct {
	Items  []RawItem
	Failed []*ExtractionFailed
	Chunks int
}

// ExtractAll extracts every chunk with bounded concurrency. Chunks that fail
// are reported in Result.Failed and do not abort the run. Items come back
// ordered by chunk start page, keeping the order within each chunk.
func (e *Extractor) ExtractAll(ctx context.Context, chunks []text.Chunk, hooks Hooks) (Result, error) {
	ordered := make([]text.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartPage < ordered[j].StartPage })

	lastPage := 0
	for _, c := range ordered {
		lastPage = max(lastPage, c.EndPage)
	}

	perChunk := make([][]RawItem, len(ordered))
	failed := make([]*ExtractionFailed, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, chunk := range ordered {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if hooks.Checkpoint != nil {
				if err := hooks.Checkpoint(gctx); err != nil {
					return err
				}
			}
			if hooks.Progress != nil {
				hooks.Progress(gctx, fmt.Sprintf("Parsing pages %d-%d / %d", chunk.StartPage, chunk.EndPage, lastPage))
			}

			items, err := e.Extract(gctx, chunk)
			if err != nil {
				var ef *ExtractionFailed
				if errors.As(err, &ef) {
					slog.ErrorContext(gctx, "skipping chunk", "pages", chunk.ID().String(), "attempts", int(ef.Attempts), "error", ef.LastErr)
					failed[i] = ef
					return nil
				}
				return err
			}
			perChunk[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Chunks: len(ordered)}
	for i := range ordered {
		res.Items = append(res.Items, perChunk[i]...)
		if failed[i] != nil {
			res.Failed = append(res.Failed, failed[i])
		}
	}
	return res, nil
}
