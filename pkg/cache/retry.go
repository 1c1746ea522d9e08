package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks a backend (Redis, Neo4j) that could not be reached.
var ErrNetwork = errors.New("network error")

// RetryableError marks a failure worth another attempt.
type RetryableError struct{ Err error }

// Retryable marks err as transient. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether any error in err's chain is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff retries an operation while it fails with retryable errors.
type Backoff struct {
	// Attempts is the total number of tries; values below 1 mean one try.
	Attempts int
	// Delay is the wait before the second try. It doubles after every try.
	Delay time.Duration
}

// DefaultBackoff tries three times, waiting 1s and then 2s.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second}

// Do runs fn until it succeeds, fails with an error that is not retryable,
// or the attempts run out. It returns ctx.Err() when ctx ends while waiting.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Delay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !IsRetryable(err) || attempt >= b.Attempts {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

// RetryWithBackoff runs fn with DefaultBackoff.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Do(ctx, fn)
}
