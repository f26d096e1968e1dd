package completion

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces calls to the wrapped Completer to at most rpm per minute.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited wraps c. A non-positive rpm disables limiting.
func NewRateLimited(c Completer, rpm int) *RateLimited {
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
	}
	return &RateLimited{next: c, limiter: rate.NewLimiter(limit, 1)}
}

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Complete(ctx, req)
}
