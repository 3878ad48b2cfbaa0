// Package resilience wraps calls to slow or failing dependencies with
// timeout, retry, circuit breaker, bulkhead and fallback policies.
//
// Policies compose around an Operation and return an Operation with the same
// signature, applied outermost first as:
//
//	fallback(retry(breaker(timeout(bulkhead(op)))))
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// ErrBulkheadFull is returned when the concurrency limit of a dependency is reached.
var ErrBulkheadFull = errors.New("bulkhead full")

// Operation is a context-aware call to a dependency.
type Operation[In, Out any] func(ctx context.Context, in In) (Out, error)

// Fallback produces a substitute result once every other policy gave up.
type Fallback[In, Out any] func(ctx context.Context, in In, err error) (Out, error)

// Policy configures the guards applied by Wrap. Zero fields disable the
// corresponding guard.
type Policy struct {
	// Timeout bounds every single attempt.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// NewBackOff builds the delay schedule for one call.
	NewBackOff func() backoff.BackOff

	// Abort stops retrying for errors it accepts.
	Abort func(error) bool

	// OnRetry is notified before each delayed retry.
	OnRetry func(err error, wait time.Duration)

	Breaker  *gobreaker.CircuitBreaker
	Bulkhead *semaphore.Weighted
}

// Wrap decorates op with the guards configured in p. A nil fallback lets the
// final error through.
func Wrap[In, Out any](op Operation[In, Out], p Policy, fallback Fallback[In, Out]) Operation[In, Out] {
	guarded := withBulkhead(op, p.Bulkhead)
	guarded = withTimeout(guarded, p.Timeout)
	guarded = withBreaker(guarded, p.Breaker)
	guarded = withRetry(guarded, p)

	if fallback == nil {
		return guarded
	}

	return func(ctx context.Context, in In) (Out, error) {
		out, err := guarded(ctx, in)
		if err != nil {
			return fallback(ctx, in, err)
		}
		return out, nil
	}
}

func withBulkhead[In, Out any](op Operation[In, Out], sem *semaphore.Weighted) Operation[In, Out] {
	if sem == nil {
		return op
	}
	return func(ctx context.Context, in In) (Out, error) {
		if !sem.TryAcquire(1) {
			var zero Out
			return zero, ErrBulkheadFull
		}
		defer sem.Release(1)
		return op(ctx, in)
	}
}

func withTimeout[In, Out any](op Operation[In, Out], d time.Duration) Operation[In, Out] {
	if d <= 0 {
		return op
	}
	return func(ctx context.Context, in In) (Out, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return op(ctx, in)
	}
}

func withBreaker[In, Out any](op Operation[In, Out], cb *gobreaker.CircuitBreaker) Operation[In, Out] {
	if cb == nil {
		return op
	}
	return func(ctx context.Context, in In) (Out, error) {
		res, err := cb.Execute(func() (interface{}, error) {
			return op(ctx, in)
		})
		out, _ := res.(Out)
		return out, err
	}
}

func withRetry[In, Out any](op Operation[In, Out], p Policy) Operation[In, Out] {
	if p.MaxRetries <= 0 || p.NewBackOff == nil {
		return op
	}
	return func(ctx context.Context, in In) (Out, error) {
		var out Out
		schedule := backoff.WithContext(backoff.WithMaxRetries(p.NewBackOff(), uint64(p.MaxRetries)), ctx)

		err := backoff.RetryNotify(func() error {
			res, err := op(ctx, in)
			if err != nil {
				if p.permanent(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			out = res
			return nil
		}, schedule, p.OnRetry)

		return out, err
	}
}

// permanent errors end the retry loop. An open breaker is not worth waiting on.
func (p Policy) permanent(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return true
	}
	return p.Abort != nil && p.Abort(err)
}

// ExponentialBackOff returns a factory for doubling delays capped at max.
func ExponentialBackOff(initial, max time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}
