package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = apperrors.New(apperrors.ErrCodePoolClosed, "search pool is closed", nil)

// Task is a unit of pooled work.
type Task func(ctx context.Context) ([]corpus.Entry, error)

// Pool runs CPU-heavy searches on a bounded number of goroutines so they
// cannot starve request handling. A panicking task fails only its own
// request.
type Pool struct {
	size    int
	sem     *semaphore.Weighted
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolMetrics reports in-flight tasks to m.
func WithPoolMetrics(m *Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a pool running at most size tasks at once. A non-positive
// size uses GOMAXPROCS.
func NewPool(size int, opts ...PoolOption) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the worker limit.
func (p *Pool) Size() int {
	return p.size
}

// Submit schedules task. It blocks until a worker slot is free or ctx is
// done. The task receives ctx; if the caller stops waiting the task still
// runs to completion and its result is dropped.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return nil, err
	}

	f := newFuture()
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		p.metrics.poolStarted()
		defer p.metrics.poolFinished()

		f.complete(p.run(ctx, task))
	}()
	return f, nil
}

// Do submits task and waits for it.
func (p *Pool) Do(ctx context.Context, task Task) ([]corpus.Entry, error) {
	f, err := p.Submit(ctx, task)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

func (p *Pool) run(ctx context.Context, task Task) (entries []corpus.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("search_worker_panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			entries = nil
			err = apperrors.New(apperrors.ErrCodeWorkerFailed,
				fmt.Sprintf("search worker failed: %v", r), nil)
		}
	}()
	return task(ctx)
}

// Close rejects new tasks and waits for running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Future is the pending result of a pooled task.
type Future struct {
	done    chan struct{}
	entries []corpus.Entry
	err     error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(entries []corpus.Entry, err error) {
	f.entries = entries
	f.err = err
	close(f.done)
}

// Done is closed once the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) ([]corpus.Entry, error) {
	select {
	case <-f.done:
		return f.entries, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
