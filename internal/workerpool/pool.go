// Package workerpool runs background tasks on a bounded set of workers.
// It backs generation calls, retries and persistence writes so none of them
// ever run on a request goroutine.
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Task is a unit of background work. The context is cancelled when the pool
// shuts down.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool fed by a bounded queue.
type Pool struct {
	name   string
	tasks  chan Task
	wg     conc.WaitGroup
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers and queue capacity.
func New(name string, workers, queue int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		tasks:  make(chan Task, queue),
		logger: logger.With().Str("pool", name).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		id := i
		p.wg.Go(func() { p.work(id) })
	}
	return p
}

func (p *Pool) work(id int) {
	for task := range p.tasks {
		if r := panics.Try(func() { task(p.ctx) }); r != nil {
			p.logger.Error().Err(r.AsError()).Int("worker", id).Msg("task panicked")
		}
	}
}

// Submit enqueues a task without blocking. It returns false when the queue is
// full or the pool is closed.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn().Msg("submit after close")
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		p.logger.Warn().Int("queue", cap(p.tasks)).Msg("queue full, task dropped")
		return false
	}
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	return len(p.tasks)
}

// Close stops accepting tasks and waits for queued ones to drain. If ctx ends
// first, running tasks see their context cancelled and Close returns ctx.Err().
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
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
		return fmt.Errorf("workerpool %s: close: %w", p.name, ctx.Err())
	}
}
