package worker

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/admitq/id"
	"github.com/xraph/admitq/job"
	"github.com/xraph/admitq/queue"
)

// Pool dispatches queued jobs onto a fixed number of concurrent execution
// slots. A single dispatcher goroutine pops the FIFO head whenever a slot
// is free, preserving strict arrival order, and sleeps a small randomized
// jitter between successive dispatches so job starts never burst against
// shared downstream resources.
type Pool struct {
	fifo     *queue.FIFO
	store    job.Store
	executor *Executor
	slots    int
	workerID id.ID
	logger   *slog.Logger

	// Smoothing jitter bounds between dispatches.
	jitterMin time.Duration
	jitterMax time.Duration

	// Optional pool-wide dispatch rate (token bucket).
	dispatchLimiter *rate.Limiter

	sem      chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	activeMu sync.Mutex
	active   map[string]context.CancelCauseFunc

	// baseCtx parents every job's execution context; it stays alive
	// through a graceful Stop so in-flight jobs can finish. dispatchCtx
	// only unblocks a dispatcher parked in the rate limiter.
	baseCtx      context.Context
	baseStop     context.CancelFunc
	dispatchCtx  context.Context
	dispatchStop context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithSlots sets the number of concurrent execution slots.
func WithSlots(n int) PoolOption {
	return func(p *Pool) { p.slots = n }
}

// WithJitter sets the smoothing jitter bounds applied between successive
// dispatches. Zero max disables jitter.
func WithJitter(min, max time.Duration) PoolOption {
	return func(p *Pool) {
		p.jitterMin = min
		p.jitterMax = max
	}
}

// WithDispatchRate caps the sustained rate of job starts pool-wide using
// a token bucket. Zero perSecond disables the cap.
func WithDispatchRate(perSecond float64, burst int) PoolOption {
	return func(p *Pool) {
		if perSecond <= 0 {
			p.dispatchLimiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.dispatchLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewPool creates a worker pool reading from fifo.
func NewPool(
	fifo *queue.FIFO,
	store job.Store,
	executor *Executor,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		fifo:     fifo,
		store:    store,
		executor: executor,
		slots:    4,
		workerID: id.NewWorkerID(),
		logger:   logger,
		stopCh:   make(chan struct{}),
		active:   make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sem = make(chan struct{}, p.slots)
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.ID { return p.workerID }

// Slots returns the configured number of execution slots.
func (p *Pool) Slots() int { return p.slots }

// Start launches the dispatcher. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.baseCtx, p.baseStop = context.WithCancel(context.Background())
	p.dispatchCtx, p.dispatchStop = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("slots", p.slots),
	)

	p.wg.Add(1)
	go p.dispatchLoop()

	return nil
}

// Stop signals the dispatcher to stop and waits for in-flight jobs.
// If the context has a deadline, active jobs are cancelled when time runs
// out.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)
	p.dispatchStop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	// In-flight jobs keep running until they finish on their own; only an
	// exhausted deadline cancels them.
	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	p.baseStop()
	return nil
}

// Cancel signals the executor running jobID to stop cooperatively.
// It reports whether a running execution was found.
func (p *Pool) Cancel(jobID id.ID) bool {
	p.activeMu.Lock()
	cancel, ok := p.active[jobID.String()]
	p.activeMu.Unlock()

	if !ok {
		return false
	}
	cancel(ErrJobCancelled)
	return true
}

// dispatchLoop is the single goroutine that moves jobs from the FIFO head
// onto free slots. Keeping dispatch single-threaded is what guarantees
// strict FIFO start order.
func (p *Pool) dispatchLoop() {
	defer p.wg.Done()

	for {
		// Wait for a free slot.
		select {
		case p.sem <- struct{}{}:
		case <-p.stopCh:
			return
		}

		if p.dispatchLimiter != nil {
			if err := p.dispatchLimiter.Wait(p.dispatchCtx); err != nil {
				<-p.sem
				return
			}
		}

		j := p.fifo.Pop()
		if j == nil {
			<-p.sem
			select {
			case <-p.fifo.Wake():
			case <-p.stopCh:
				return
			}
			continue
		}

		// Claim here, not in the spawned goroutine, so StartedAt follows
		// queue order even when several slots are free.
		claimed, err := p.store.MarkRunning(context.Background(), j.ID)
		if err != nil {
			// Cancelled between pop and claim; the slot simply moves on.
			p.logger.Debug("skipping job no longer queued",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			<-p.sem
			continue
		}

		p.wg.Add(1)
		go p.runJob(claimed)

		p.sleepJitter()
	}
}

// runJob executes a claimed job on the held slot.
func (p *Pool) runJob(j *job.Job) {
	defer p.wg.Done()
	defer func() { <-p.sem }()

	ctx, cancel := context.WithCancelCause(p.baseCtx)
	p.trackJob(j.ID.String(), cancel)

	// A cancellation landing between the claim and trackJob above finds
	// no cancel func to call; re-read the status so it is not lost.
	if cur, err := p.store.Get(context.Background(), j.ID); err == nil && cur.Status == job.StatusCancelled {
		cancel(ErrJobCancelled)
	}

	p.executor.Execute(ctx, j)

	p.untrackJob(j.ID.String())
	cancel(nil)
}

// sleepJitter applies the smoothing delay between dispatches. It never
// reorders the queue; it only spaces out job starts.
func (p *Pool) sleepJitter() {
	if p.jitterMax <= 0 {
		return
	}

	d := p.jitterMin
	if span := p.jitterMax - p.jitterMin; span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}

	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelCauseFunc) {
	p.activeMu.Lock()
	p.active[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.active, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.active {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel(ErrJobCancelled)
	}
}
