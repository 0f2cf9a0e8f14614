package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Pool runs jobs on a fixed set of worker goroutines.
// It provides bounded queuing, graceful shutdown, and configurable timeouts.
type Pool struct {
	// Configuration
	queueSize   int
	workerCount int
	timeout     time.Duration

	// State
	mu      sync.Mutex // protects queue creation/destruction
	queue   chan poolTask
	running atomic.Bool
	wg      sync.WaitGroup

	// Handlers
	panicHandler PanicHandler

	// Stats
	submitted   atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// poolTask is a job waiting in the queue.
type poolTask struct {
	ctx context.Context
	job Job
}

// NewPool creates a new worker pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		queueSize:    1024,
		workerCount:  4,
		timeout:      0,
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueSize sets the job queue size.
func WithQueueSize(size int) PoolOption {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) PoolOption {
	return func(p *Pool) {
		if count > 0 {
			p.workerCount = count
		}
	}
}

// WithJobTimeout bounds the context handed to each job.
// Zero disables the bound.
func WithJobTimeout(timeout time.Duration) PoolOption {
	return func(p *Pool) {
		if timeout >= 0 {
			p.timeout = timeout
		}
	}
}

// WithPoolPanicHandler sets the handler for panics escaping a job.
func WithPoolPanicHandler(h PanicHandler) PoolOption {
	return func(p *Pool) {
		if h != nil {
			p.panicHandler = h
		}
	}
}

// Start starts the worker goroutines.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return ErrAlreadyRunning
	}

	p.queue = make(chan poolTask, p.queueSize)
	p.running.Store(true)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(p.queue)
	}

	return nil
}

// Stop stops the pool gracefully.
// It waits for all queued jobs to complete or until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrNotRunning
	}

	p.running.Store(false)
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit adds a job to the queue.
// Returns ErrQueueFull if the queue is at capacity.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if job == nil {
		return ErrNilJob
	}

	// Held so Stop cannot close the queue between the running check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return ErrNotRunning
	}

	select {
	case p.queue <- poolTask{ctx: ctx, job: job}:
		p.submitted.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// worker processes jobs from the queue.
func (p *Pool) worker(queue <-chan poolTask) {
	defer p.wg.Done()

	for task := range queue {
		p.run(task)
	}
}

// run executes a single job with timeout and panic recovery.
func (p *Pool) run(task poolTask) {
	p.processed.Add(1)
	start := time.Now()

	ctx := task.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			stack := debug.Stack()
			func() {
				defer func() { _ = recover() }()
				p.panicHandler(r, stack)
			}()
		}
		p.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	task.job(ctx)
}

// QueueDepth returns the current number of jobs in the queue.
// Returns 0 if the pool is not running.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Load() {
		return 0
	}
	return len(p.queue)
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	processed := p.processed.Load()
	totalNs := p.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return PoolStats{
		Submitted:     p.submitted.Load(),
		Processed:     processed,
		Panicked:      p.panicked.Load(),
		Dropped:       p.dropped.Load(),
		QueueDepth:    p.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// PoolStats contains statistics for a pool.
type PoolStats struct {
	// Submitted is the total number of jobs accepted into the queue.
	Submitted uint64

	// Processed is the number of jobs that have been run.
	Processed uint64

	// Panicked is the number of jobs that panicked.
	Panicked uint64

	// Dropped is the number of jobs rejected because the queue was full.
	Dropped uint64

	// QueueDepth is the current number of jobs waiting in the queue.
	QueueDepth int

	// TotalDuration is the cumulative time spent running jobs.
	TotalDuration time.Duration

	// AvgDuration is the average job run time.
	AvgDuration time.Duration
}
