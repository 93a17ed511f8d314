// Package retry provides the bounded retry policy used around
// allocate-and-use operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"invoicer/internal/core/apperror"
)

// Backoff kinds.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Policy repeats a whole operation while it fails with a retryable error.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean 1.
	MaxAttempts int

	// Delay is the wait between attempts (initial interval for exponential).
	Delay time.Duration

	// Backoff is BackoffConstant or BackoffExponential.
	Backoff string

	// MaxDelay caps exponential growth. Zero leaves the library default.
	MaxDelay time.Duration

	// Retryable decides whether err may succeed on a new attempt.
	// Defaults to apperror.IsRetryable.
	Retryable func(err error) bool

	// OnRetry is called before each new attempt.
	OnRetry func(err error, attempt int, wait time.Duration)
}

// DefaultPolicy gives 3 attempts with a constant 100ms pause.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       100 * time.Millisecond,
		Backoff:     BackoffConstant,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err came from a spent retry budget.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Do runs op until it succeeds, fails with a non-retryable error, ctx is
// done, or the attempt budget is spent.
//
// Non-retryable errors are returned unchanged. A spent budget returns
// *ExhaustedError wrapping the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = apperror.IsRetryable
	}

	var (
		n       int
		lastErr error
	)
	operation := func() error {
		n++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, n+1, wait)
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(p.newBackOff(), uint64(attempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if lastErr != nil && retryable(lastErr) {
		return &ExhaustedError{Attempts: n, Last: lastErr}
	}
	return err
}

func (p Policy) newBackOff() backoff.BackOff {
	if p.Backoff == BackoffExponential {
		eb := backoff.NewExponentialBackOff()
		if p.Delay > 0 {
			eb.InitialInterval = p.Delay
		}
		if p.MaxDelay > 0 {
			eb.MaxInterval = p.MaxDelay
		}
		eb.MaxElapsedTime = 0
		eb.Reset()
		return eb
	}
	return backoff.NewConstantBackOff(p.Delay)
}
