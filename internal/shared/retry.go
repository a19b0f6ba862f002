package shared

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds how recoverable failures are retried.
//
// Attempt n (0-based) waits Base * 2^n before the next try unless the error carries a server-supplied delay.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy is three attempts starting at half a second.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 500 * time.Millisecond, Max: 30 * time.Second}

// RateLimitError is returned for HTTP 429 responses. It matches [ErrRateLimited] with errors.Is.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Service)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	d := p.Base << attempt

	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		d = rl.RetryAfter
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Retry calls fn until it succeeds, fails with a non-recoverable error, or the attempts run out.
//
// The last error is returned. Context cancellation stops the wait between attempts.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := range attempts {
		if err = fn(ctx); err == nil || !IsRecoverable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.delay(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
