package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/api/metrics"
)

const channelBuffer = 256

var (
	// ErrPoolStopped is returned by Submit once the pool has been stopped.
	ErrPoolStopped = errors.New("worker pool stopped")
	// ErrJobPanicked is returned by Submit when the submitted function panicked.
	ErrJobPanicked = errors.New("worker pool job panicked")
)

type job struct {
	fn   func()
	err  error
	done chan struct{}

	// leaveQueue releases the job's slot in the queue-depth gauge exactly
	// once, whether a worker picked it up or its submitter gave up first.
	leaveQueue sync.Once
}

func (j *job) dequeued() {
	j.leaveQueue.Do(metrics.HashPoolQueueDepth.Dec)
}

// WorkerPool runs CPU-bound work (password hashing) on a fixed set of
// goroutines so a burst of logins cannot starve the request goroutines.
type WorkerPool struct {
	jobs     chan *job
	size     int
	quit     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

// NewWorkerPool creates a WorkerPool with numWorkers workers.
// If numWorkers <= 0, runtime.NumCPU() is used.
func NewWorkerPool(numWorkers int, log zerolog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{
		jobs: make(chan *job, channelBuffer),
		size: numWorkers,
		quit: make(chan struct{}),
		log:  log,
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Start launches all worker goroutines. The pool stops when ctx is cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.runWorker(ctx, i)
	}
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.quit:
		}
	}()
}

// Stop shuts the pool down. Safe to call more than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
}

// Submit runs fn on a worker and waits for it to finish. It returns early with
// ctx.Err() if the caller gives up, or ErrPoolStopped if the pool shuts down.
// fn may still run after an early return; it must not touch state the caller
// reads after Submit fails.
func (p *WorkerPool) Submit(ctx context.Context, fn func()) error {
	j := &job{fn: fn, done: make(chan struct{})}

	metrics.HashPoolQueueDepth.Inc()
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		j.dequeued()
		return ctx.Err()
	case <-p.quit:
		j.dequeued()
		return ErrPoolStopped
	}

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		j.dequeued()
		return ctx.Err()
	case <-p.quit:
		j.dequeued()
		return ErrPoolStopped
	}
}

func (p *WorkerPool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case j := <-p.jobs:
			j.dequeued()
			p.run(id, j)
		}
	}
}

func (p *WorkerPool) run(id int, j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			p.log.Error().
				Interface("panic", r).
				Int("worker_id", id).
				Msg("worker pool job panicked")
		}
	}()
	j.fn()
}
