package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SharesInstancesByName(t *testing.T) {
	r := NewRegistry(testLogger())
	s := BreakerSettings{VolumeThreshold: 1, FailureRatio: 1, Delay: time.Minute}

	assert.Same(t, r.Breaker("dep", s), r.Breaker("dep", BreakerSettings{}))
	assert.NotSame(t, r.Breaker("dep", s), r.Breaker("other", s))
	assert.Same(t, r.Bulkhead("dep", 2), r.Bulkhead("dep", 5))
}

func TestRegistry_StateOfUnknownBreaker(t *testing.T) {
	r := NewRegistry(testLogger())

	state, ok := r.State("missing")
	assert.False(t, ok)
	assert.Equal(t, gobreaker.StateClosed, state)
}

func TestRegistry_BreakerOpensOnFailureRatio(t *testing.T) {
	r := NewRegistry(testLogger())
	cb := r.Breaker("dep", BreakerSettings{VolumeThreshold: 2, FailureRatio: 0.5, Delay: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (any, error) { return nil, errTransient })
		require.ErrorIs(t, err, errTransient)
	}

	state, ok := r.State("dep")
	require.True(t, ok)
	assert.Equal(t, gobreaker.StateOpen, state)

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
}

func TestRegistry_SkippedErrorsDoNotTrip(t *testing.T) {
	r := NewRegistry(testLogger())
	cb := r.Breaker("dep", BreakerSettings{
		VolumeThreshold: 1,
		FailureRatio:    0.5,
		Delay:           time.Minute,
		SkipOn:          isBadInput,
	})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errBadInput })
	}

	state, _ := r.State("dep")
	assert.Equal(t, gobreaker.StateClosed, state)
}
