package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// PoolMetrics tracks worker pool operational metrics.
type PoolMetrics struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// ErrPoolShutdown is returned when work is submitted to a shut-down pool.
var ErrPoolShutdown = errors.New("worker pool is shut down")

// WorkerPool is a bounded goroutine pool shared by the normalizer (called
// process resolution) and the analyzer (per-process pipelines).
type WorkerPool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	metrics PoolMetrics
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
}

// NewWorkerPool creates a pool with the given max concurrency.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		sem:  make(chan struct{}, size),
		done: make(chan struct{}),
	}
}

// Submit runs fn on a pool goroutine. It blocks while the pool is at
// capacity and gives up when ctx is done. Returns ErrPoolShutdown if the
// pool has been shut down. A panic in fn is recovered and counted as a
// failure.
func (p *WorkerPool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.submit(ctx, fn, nil)
}

func (p *WorkerPool) submit(ctx context.Context, fn func(ctx context.Context) error, report func(error)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolShutdown
	}
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolShutdown
	}

	// wg.Add(1) must happen under the lock so Shutdown's wg.Wait() cannot
	// miss it.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.sem
		return ErrPoolShutdown
	}
	p.wg.Add(1)
	atomic.AddInt64(&p.metrics.Active, 1)
	p.mu.Unlock()

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.metrics.Panics, 1)
				err = fmt.Errorf("panic in pool task: %v", r)
			}
			if err != nil {
				atomic.AddInt64(&p.metrics.Failed, 1)
			} else {
				atomic.AddInt64(&p.metrics.Completed, 1)
			}
			atomic.AddInt64(&p.metrics.Active, -1)
			<-p.sem
			p.wg.Done()
			if report != nil {
				report(err)
			}
		}()
		err = fn(ctx)
	}()

	return nil
}

// RunAll runs every fn on the pool and waits for all of them, including
// the ones still running after another has failed. It returns the first
// error to complete, or nil. Siblings are never cancelled.
//
// fns must not call RunAll on the same pool; a nested fan-out can starve
// the semaphore.
func (p *WorkerPool) RunAll(ctx context.Context, fns []func(ctx context.Context) error) error {
	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	record := func(err error) {
		if err != nil {
			once.Do(func() { first = err })
		}
	}

	for _, fn := range fns {
		wg.Add(1)
		err := p.submit(ctx, fn, func(err error) {
			record(err)
			wg.Done()
		})
		if err != nil {
			wg.Done()
			record(err)
			break
		}
	}
	wg.Wait()
	return first
}

// Wait blocks until all submitted work completes.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting work and waits for active work to complete.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Metrics returns a snapshot of the current pool metrics.
func (p *WorkerPool) Metrics() PoolMetrics {
	return PoolMetrics{
		Active:    atomic.LoadInt64(&p.metrics.Active),
		Completed: atomic.LoadInt64(&p.metrics.Completed),
		Failed:    atomic.LoadInt64(&p.metrics.Failed),
		Panics:    atomic.LoadInt64(&p.metrics.Panics),
	}
}
