package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// BreakerSettings describes when a breaker opens and for how long.
type BreakerSettings struct {
	// VolumeThreshold is the minimum number of calls in Window before the
	// failure ratio is considered.
	VolumeThreshold uint32
	FailureRatio    float64
	// Delay is how long the breaker stays open before a probe is allowed.
	Delay  time.Duration
	Window time.Duration
	// SkipOn marks errors that count as successes for the breaker.
	SkipOn func(error) bool
}

// Registry holds process-wide breakers and bulkheads keyed by dependency
// name, shared by every request that calls the same dependency.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	bulkheads map[string]*semaphore.Weighted
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		bulkheads: make(map[string]*semaphore.Weighted),
		logger:    logger,
	}
}

// Breaker returns the breaker registered under name, creating it from s on
// first use. Later settings for the same name are ignored.
func (r *Registry) Breaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	skip := s.SkipOn
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Window,
		Timeout:     s.Delay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.VolumeThreshold {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (skip != nil && skip(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	r.breakers[name] = cb

	return cb
}

// Bulkhead returns the concurrency limiter registered under name.
func (r *Registry) Bulkhead(name string, size int64) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sem, ok := r.bulkheads[name]; ok {
		return sem
	}
	sem := semaphore.NewWeighted(size)
	r.bulkheads[name] = sem
	return sem
}

// State reports the current state of a registered breaker.
func (r *Registry) State(name string) (gobreaker.State, bool) {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return gobreaker.StateClosed, false
	}
	return cb.State(), true
}
