// Package retry runs an operation a bounded number of times with
// exponential delays between attempts.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop. Zero fields take the defaults of Default.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	// Retryable decides whether an error is worth another attempt.
	// nil retries every error.
	Retryable func(error) bool
}

// Default is three attempts starting at 250ms.
var Default = Policy{Attempts: 3, Base: 250 * time.Millisecond, Max: 5 * time.Second}

// Delay returns the wait after the given failed attempt (1-based):
// base, 2*base, 4*base ... capped at max.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return max
	}
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// Do calls fn until it succeeds, the policy is exhausted, the error is not
// retryable, or ctx is done. It returns the last error from fn, or ctx.Err()
// if the context ended while waiting.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = Default.Attempts
	}
	if p.Base <= 0 {
		p.Base = Default.Base
	}
	if p.Max <= 0 {
		p.Max = Default.Max
	}

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}
		t := time.NewTimer(Delay(attempt, p.Base, p.Max))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
