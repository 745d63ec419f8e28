package sink

import (
	"context"
	"errors"
	"time"

	"github.com/strahe/pgreplay-sentinel/pgerr"
)

const (
	maxAttempts     = 5
	initialDelay    = 1 * time.Second
	maxDelay        = 30 * time.Second
	backoffMultiple = 2
)

// Attempt is one delivery try. It should return a *pgerr.SinkError to
// classify failure as Transient (worth retrying) or Permanent (retry
// would not help — malformed payload, 4xx rejection, etc); any other
// non-nil error is treated as Transient.
type Attempt func(ctx context.Context) error

// WithRetry runs attempt up to maxAttempts times, sleeping between
// tries with delay doubling from 1s up to a 30s cap, stopping early on
// a Permanent classification or success. name identifies the sink in
// the returned SinkError.
func WithRetry(ctx context.Context, name string, attempt Attempt) error {
	delay := initialDelay
	var lastErr error

	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= backoffMultiple
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var sinkErr *pgerr.SinkError
		if errors.As(err, &sinkErr) && !sinkErr.Transient {
			// A classified Permanent failure never benefits from a
			// retry; surface it immediately instead of burning the
			// remaining attempts.
			return err
		}
	}

	return pgerr.NewExhaustedSinkError(name, lastErr)
}
