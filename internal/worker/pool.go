package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrPoolClosed is reported by Close when called twice.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a detached unit of work. Its error is logged and dropped.
type Task func(ctx context.Context) error

type job struct {
	name string
	task Task
}

// Pool runs fire-and-forget tasks on a fixed set of goroutines with a bounded
// queue. Submissions never block: when the queue is full the task is dropped.
type Pool struct {
	mu      sync.RWMutex
	closed  bool
	jobs    chan job
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewPool(workers, queueSize int, taskTimeout time.Duration, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan job, queueSize),
		timeout: taskTimeout,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}

	return p
}

// Submit queues a task. It returns false if the pool is closed or saturated.
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("task rejected, pool closed", "task", name)
		return false
	}

	select {
	case p.jobs <- job{name: name, task: task}:
		return true
	default:
		p.logger.Warn("task dropped, queue full", "task", name)
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// expires first, running tasks are cancelled.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.execute(j)
	}
}

func (p *Pool) execute(j job) {
	ctx := p.baseCtx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", j.name, "panic", r)
		}
	}()

	if err := j.task(ctx); err != nil {
		p.logger.Error("task failed", "task", j.name, "error", err)
	}
}
