// Package worker runs blocking work on bounded goroutine pools and hands the
// results back through futures.
//
// A pool of size one is a lane: tasks run strictly one after another in
// submission order, which is how the cache serializes SQLite access.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("worker pool closed")

// Pool executes tasks on a fixed number of goroutines.
type Pool struct {
	name  string
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers. Sizes below one are raised to one.
func NewPool(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{name: name, tasks: make(chan func(), size)}
	p.wg.Add(size)
	for range size {
		go p.run()
	}
	return p
}

// NewLane starts a single-worker pool.
func NewLane(name string) *Pool {
	return NewPool(name, 1)
}

// Name returns the label given at construction.
func (p *Pool) Name() string { return p.name }

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// enqueue blocks until a worker slot in the queue frees up, ctx ends or the pool closes.
func (p *Pool) enqueue(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(value T, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(value, err)
	return f
}

// Go runs fn on its own goroutine and returns its future. It is meant for
// orchestration that itself waits on pool futures.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		f.resolve(call(ctx, fn))
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await waits for the result or for ctx to end, whichever comes first. A
// ctx ending does not cancel the task itself.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues fn on p. fn receives ctx and is skipped if ctx has ended by
// the time a worker picks it up.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	if err := ctx.Err(); err != nil {
		var zero T
		f.resolve(zero, err)
		return f
	}
	err := p.enqueue(ctx, func() {
		if err := ctx.Err(); err != nil {
			var zero T
			f.resolve(zero, err)
			return
		}
		f.resolve(call(ctx, fn))
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}

// Do submits fn and waits for its result.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	return Submit(ctx, p, fn).Await(ctx)
}

func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker task panic: %v", r)
		}
	}()
	return fn(ctx)
}
