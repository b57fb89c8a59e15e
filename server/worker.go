package server

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("compile worker stopped")

// workRequest is a unit of work to be executed on a worker goroutine.
type workRequest struct {
	fn   func() (any, error)
	done chan workResult
}

// workResult holds the return value from a unit of work.
type workResult struct {
	value any
	err   error
}

// Worker bounds the number of compilations running at once. Requests are
// queued and picked up by a fixed set of goroutines; a panic in one request
// is reported as an error to its caller.
type Worker struct {
	requests chan workRequest
	quit     chan struct{}
	stop     sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a Worker with n goroutines. n <= 0 uses GOMAXPROCS.
func NewWorker(n int) *Worker {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	w.wg.Add(n)
	for i := 0; i < n; i++ {
		go w.loop()
	}
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() (any, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workResult{err: fmt.Errorf("compile panicked: %v", r)}
		}
	}()
	v, err := fn()
	return workResult{value: v, err: err}
}

// Do queues fn and blocks until it has run, ctx is done or the worker
// stops.
func (w *Worker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrWorkerStopped
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		// prefer a result that is already waiting
		select {
		case result := <-req.done:
			return result.value, result.err
		default:
			return nil, ErrWorkerStopped
		}
	}
}

// Stop shuts down the worker goroutines and waits for them to exit.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
	w.wg.Wait()
}
