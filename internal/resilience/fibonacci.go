package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FibonacciBackOff grows delays as initial * 1, 1, 2, 3, 5, 8... capped at Max.
type FibonacciBackOff struct {
	Initial time.Duration
	Max     time.Duration

	prev time.Duration
	curr time.Duration
}

var _ backoff.BackOff = (*FibonacciBackOff)(nil)

func NewFibonacciBackOff(initial, max time.Duration) *FibonacciBackOff {
	b := &FibonacciBackOff{Initial: initial, Max: max}
	b.Reset()
	return b
}

func (b *FibonacciBackOff) Reset() {
	b.prev = 0
	b.curr = b.Initial
}

func (b *FibonacciBackOff) NextBackOff() time.Duration {
	next := b.curr
	if b.Max > 0 && next >= b.Max {
		return b.Max
	}
	b.prev, b.curr = b.curr, b.prev+b.curr
	return next
}

// FibonacciBackOffFactory adapts NewFibonacciBackOff to Policy.NewBackOff.
func FibonacciBackOffFactory(initial, max time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return NewFibonacciBackOff(initial, max)
	}
}
