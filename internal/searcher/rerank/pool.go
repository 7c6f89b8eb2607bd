package rerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
)

// ErrPoolClosed is returned by Do after Close.
var ErrPoolClosed = errors.New("rerank pool closed")

// PanicError carries a recovered panic from a pool job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in rerank job: %v", e.Value)
}

type result struct {
	scores []float64
	err    error
}

type job struct {
	ctx    context.Context
	fn     func(ctx context.Context) ([]float64, error)
	result chan result
}

// Pool is a fixed set of workers that run inference off the request
// goroutines. Each job gets its own buffered result channel, so a caller
// that gives up never blocks a worker.
type Pool struct {
	jobs      chan job
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewPool starts workers goroutines with a queue of queueSize pending
// jobs. Non-positive values default to GOMAXPROCS and twice the worker
// count.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	p := &Pool{
		jobs:   make(chan job, queueSize),
		quit:   make(chan struct{}),
		logger: slog.Default().With("component", "rerank-pool"),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Do runs fn on a worker and waits for its result or for ctx.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) ([]float64, error)) ([]float64, error) {
	j := job{ctx: ctx, fn: fn, result: make(chan result, 1)}
	select {
	case <-p.quit:
		return nil, ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolClosed
	}
	select {
	case r := <-j.result:
		return r.scores, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolClosed
	}
}

// Close stops the workers and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			if err := j.ctx.Err(); err != nil {
				j.result <- result{err: err}
				continue
			}
			j.result <- p.run(j)
		}
	}
}

func (p *Pool) run(j job) (r result) {
	defer func() {
		if v := recover(); v != nil {
			pe := &PanicError{Value: v, Stack: debug.Stack()}
			p.logger.Error("recovered panic in rerank job", "panic", v)
			r = result{err: pe}
		}
	}()
	scores, err := j.fn(j.ctx)
	return result{scores: scores, err: err}
}
