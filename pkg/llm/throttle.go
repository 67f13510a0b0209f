package llm

import (
	"context"
	"errors"
	"time"

	"github.com/WessleyAI/career-agent/pkg/fn"
	"golang.org/x/time/rate"
)

// Throttled spaces calls to a provider and retries transient failures.
type Throttled struct {
	next    Client
	limiter *rate.Limiter
	retry   fn.RetryOpts
}

// NewThrottled allows perSecond calls with a burst of one. A non-positive
// rate disables throttling.
func NewThrottled(next Client, perSecond float64) *Throttled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	opts := fn.DefaultRetry
	opts.MaxWait = 5 * time.Second
	opts.Retryable = retryable
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, 1), retry: opts}
}

func (t *Throttled) Complete(ctx context.Context, req Request) (string, error) {
	return fn.Retry(ctx, t.retry, func(ctx context.Context) fn.Result[string] {
		if err := t.limiter.Wait(ctx); err != nil {
			return fn.Err[string](err)
		}
		return fn.FromPair(t.next.Complete(ctx, req))
	}).Unwrap()
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrEmptyResponse)
}
