// Package retry runs an operation with exponential backoff between attempts.
package retry

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

// Policy configures Do. The zero value retries DefaultAttempts times starting
// at DefaultBaseDelay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration

	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
	// OnRetry is called before each wait with the failed attempt (0-based).
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Delay returns the wait after the given failed attempt: BaseDelay * 2^attempt.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base << attempt
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return DefaultAttempts
	}
	return p.Attempts
}

// Do calls fn until it succeeds, the attempts run out or ctx is cancelled.
// The error of the final attempt is returned as is.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := p.attempts()

	for attempt := 0; ; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		if attempt == attempts-1 || (p.Retryable != nil && !p.Retryable(err)) {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.Logger != nil {
			p.Logger.Warn("retrying",
				"attempt", attempt+1,
				"max_attempts", attempts,
				"delay", delay,
				"error", err,
			)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
