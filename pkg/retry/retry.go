package retry

import (
	"context"
	"time"
)

type fn func(ctx context.Context) error
type shouldRetry func(err error, attempt int) bool

// Policy describes how many times a failed call is repeated and how long to wait between attempts.
// The delay doubles after every attempt and is capped at MaxBackoff.
type Policy struct {
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

var NoRetry = Policy{}

func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// WrapWithRetry - wraps the given function, retries it if it fails and shouldRetry returns true, at most
// policy.Retries times. Returns the last error. Gives up early when ctx is done.
func WrapWithRetry(f fn, shouldRetry shouldRetry, policy Policy) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		attempt := 0

		for {
			err := f(ctx)
			if err == nil {
				return nil
			}

			attempt++

			if attempt > policy.Retries || !shouldRetry(err, attempt) {
				return err
			}

			timer := time.NewTimer(policy.delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
	}
}
