package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Worker: serialized access to one State
// ---------------------------------------------------------------------------

type workRequest struct {
	fn   func(*State) (Cell, error)
	done chan workResult
}

type workResult struct {
	value Cell
	err   error
}

// Worker owns a State and runs every operation on it from a single
// goroutine, so callers on other goroutines never touch the State directly.
type Worker struct {
	state    *State
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker around a fresh State and starts its goroutine.
func NewWorker(opts ...Option) *Worker {
	w := &Worker{
		state:    NewState(opts...),
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.run(req.fn)
		case <-w.quit:
			return
		}
	}
}

// run calls fn on the State, converting a panic into an error.
func (w *Worker) run(fn func(*State) (Cell, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workResult{value: Nil, err: fmt.Errorf("worker %s: %v", w.state.ID, r)}
		}
	}()
	v, err := fn(w.state)
	return workResult{value: v, err: err}
}

// ErrWorkerStopped is returned by Do once the worker has been stopped.
var ErrWorkerStopped = errors.New("worker stopped")

// Do submits fn for execution on the worker's goroutine and blocks until it
// completes. Panics inside fn are returned as errors.
func (w *Worker) Do(fn func(*State) (Cell, error)) (Cell, error) {
	select {
	case <-w.quit:
		return Nil, ErrWorkerStopped
	default:
	}

	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return Nil, ErrWorkerStopped
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		select {
		case result := <-req.done:
			return result.value, result.err
		default:
			return Nil, ErrWorkerStopped
		}
	}
}

// Stop shuts down the worker goroutine. Stopping twice is a no-op.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

// ---------------------------------------------------------------------------
// Pool: independent States run in parallel
// ---------------------------------------------------------------------------

// Task is a unit of work run against one worker's State.
type Task func(ctx context.Context, s *State) (Cell, error)

// Pool spreads tasks over a fixed set of Workers. Each worker has its own
// State, so heap objects never cross workers: a task's result must be nil,
// an integer or a static singleton.
type Pool struct {
	workers []*Worker
}

// NewPool starts n workers, each built with opts.
func NewPool(n int, opts ...Option) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{workers: make([]*Worker, n)}
	for i := range p.workers {
		p.workers[i] = NewWorker(opts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Run executes tasks across the pool and returns their results in task
// order. The first failing task cancels the rest.
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]Cell, error) {
	results := make([]Cell, len(tasks))
	g, ctx := errgroup.WithContext(ctx)

	next := make(chan int)
	g.Go(func() error {
		defer close(next)
		for i := range tasks {
			select {
			case next <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for _, w := range p.workers {
		g.Go(func() error {
			for i := range next {
				v, err := w.Do(func(s *State) (Cell, error) {
					return tasks[i](ctx, s)
				})
				if err != nil {
					return fmt.Errorf("task %d: %w", i, err)
				}
				if v.IsObject() && !v.IsStatic() {
					return fmt.Errorf("task %d: result is a heap object local to its worker", i)
				}
				results[i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stop shuts down every worker.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}
