package admitq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/admitq/id"
	"github.com/xraph/admitq/job"
	"github.com/xraph/admitq/limiter"
	"github.com/xraph/admitq/middleware"
	"github.com/xraph/admitq/queue"
	"github.com/xraph/admitq/store/memory"
	"github.com/xraph/admitq/worker"
)

// EnqueueResult describes a successful admission.
type EnqueueResult struct {
	// Job is a snapshot of the admitted job.
	Job *job.Job

	// QueuePosition is the job's 1-based position in the FIFO at
	// admission time.
	QueuePosition int

	// QueueLength is the FIFO length including this job.
	QueueLength int

	// EstimatedWait is a point-in-time estimate of how long the job will
	// wait before a worker slot picks it up.
	EstimatedWait time.Duration
}

// Service is the job admission and execution queue. Submissions pass
// through the per-caller rate gate, the per-caller concurrency cap, and
// the bounded FIFO before a fixed worker pool executes them.
//
// Create one with New, register executors, then Start it.
type Service struct {
	cfg         Config
	logger      *slog.Logger
	registry    *job.Registry
	store       job.Store
	rates       *limiter.RateLimiter
	concurrency *limiter.ConcurrencyLimiter
	fifo        *queue.FIFO
	estimator   *queue.Estimator
	pool        *worker.Pool
	mws         []middleware.Middleware

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New creates a Service with the given options.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		registry: job.NewRegistry(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	if s.store == nil {
		s.store = memory.New()
	}

	s.rates = limiter.NewRateLimiter(s.cfg.RateLimit, s.cfg.RateWindow)
	s.concurrency = limiter.NewConcurrencyLimiter(s.cfg.MaxConcurrentPerCaller)
	s.fifo = queue.NewFIFO(s.cfg.MaxQueueLength)
	s.estimator = queue.NewEstimator(s.cfg.DefaultJobDuration)

	// Recovery runs outermost so nothing an executor does can take down
	// a worker slot.
	chain := append([]middleware.Middleware{middleware.Recover(s.logger)}, s.mws...)

	executor := worker.NewExecutor(
		s.registry,
		s.store,
		s.concurrency,
		s.estimator,
		s.cfg.ExecutionTimeout,
		s.cfg.CancelGrace,
		s.logger,
		chain...,
	)

	s.pool = worker.NewPool(s.fifo, s.store, executor, s.logger,
		worker.WithSlots(s.cfg.WorkerSlots),
		worker.WithJitter(s.cfg.JitterMin, s.cfg.JitterMax),
		worker.WithDispatchRate(s.cfg.DispatchRate, s.cfg.DispatchBurst),
	)

	return s, nil
}

// Register registers a typed job definition with the service.
func Register[T, R any](s *Service, def *job.Definition[T, R]) {
	job.RegisterDefinition(s.registry, def)
}

// Registry returns the executor registry, for raw handler registration.
func (s *Service) Registry() *job.Registry { return s.registry }

// Store returns the job store.
func (s *Service) Store() job.Store { return s.store }

// Start launches the worker pool and the retention sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true

	if err := s.pool.Start(ctx); err != nil {
		return err
	}

	if s.cfg.Retention > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}

	return nil
}

// Stop gracefully shuts down the service. If the context has a deadline,
// still-running jobs are cancelled when time runs out.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	return s.pool.Stop(ctx)
}

// Submit marshals a typed payload and submits it.
func Submit[T any](ctx context.Context, s *Service, identifier, jobType string, payload T) (*EnqueueResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job type %q: %w", jobType, err)
	}
	return s.SubmitRaw(ctx, identifier, jobType, data)
}

// SubmitRaw runs the full admission pipeline for a pre-serialized payload:
// executor lookup, rate gate, concurrency gate, bounded FIFO append. The
// payload is owned by the job after a successful submit and must not be
// mutated by the caller.
//
// Refusals are returned as *Refusal errors; use errors.As or errors.Is
// against the sentinel errors to classify them.
func (s *Service) SubmitRaw(ctx context.Context, identifier, jobType string, payload []byte) (*EnqueueResult, error) {
	if _, ok := s.registry.Get(jobType); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}

	if d := s.rates.Check(identifier); !d.Allowed {
		return nil, &Refusal{
			Kind:        RefusalRateLimit,
			Reason:      d.Reason,
			RetryAfter:  d.ResetAfter,
			QueueLength: s.fifo.Len(),
		}
	}

	if d := s.concurrency.Check(identifier); !d.Allowed {
		return nil, &Refusal{
			Kind:        RefusalConcurrencyLimit,
			Reason:      d.Reason,
			RetryAfter:  s.cfg.ConcurrencyRetryAfter,
			QueueLength: s.fifo.Len(),
		}
	}

	j := &job.Job{
		ID:         id.NewJobID(),
		Type:       jobType,
		Payload:    payload,
		Owner:      identifier,
		Status:     job.StatusQueued,
		EnqueuedAt: time.Now().UTC(),
		Timeout:    s.registry.Options(jobType).Timeout,
	}

	if err := s.store.Create(ctx, j); err != nil {
		return nil, err
	}

	position, length, err := s.fifo.Push(j)
	if err != nil {
		// Roll the record back; the job was never admitted.
		if delErr := s.store.Delete(ctx, j.ID); delErr != nil {
			s.logger.Error("failed to roll back refused job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, &Refusal{
			Kind:        RefusalQueueCapacity,
			Reason:      fmt.Sprintf("queue is full (%d jobs pending)", length),
			RetryAfter:  s.estimator.Wait(1, s.pool.Slots()),
			QueueLength: length,
		}
	}

	s.concurrency.Register(identifier, j.ID)
	s.rates.Record(identifier)

	s.logger.Info("job admitted",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", jobType),
		slog.String("owner", identifier),
		slog.Int("queue_position", position),
	)

	return &EnqueueResult{
		Job:           j.Clone(),
		QueuePosition: position,
		QueueLength:   length,
		EstimatedWait: s.estimator.Wait(position, s.pool.Slots()),
	}, nil
}

// Jobs returns the identifier's jobs (queued, running, and retained
// terminal) ordered by enqueue time descending. The returned jobs are
// copies; mutating them has no effect on the queue.
func (s *Service) Jobs(ctx context.Context, identifier string) ([]*job.Job, error) {
	return s.store.ListByOwner(ctx, identifier)
}

// Job returns a snapshot of a single job by id.
func (s *Service) Job(ctx context.Context, jobID id.ID) (*job.Job, error) {
	return s.store.Get(ctx, jobID)
}

// QueueLength returns the number of admitted jobs waiting in the FIFO.
func (s *Service) QueueLength() int {
	return s.fifo.Len()
}

// Cancel cancels a job. A queued job is removed from the FIFO and marked
// cancelled atomically — it will never run. A running job is signalled to
// stop cooperatively and becomes cancelled once its executor acknowledges
// or the grace period forces it. Cancelling a terminal job returns
// job.ErrInvalidState.
func (s *Service) Cancel(ctx context.Context, jobID id.ID) error {
	// Take the job out of the FIFO first so the dispatcher can no longer
	// pick it up, then settle its state.
	s.fifo.Remove(jobID)

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	switch j.Status {
	case job.StatusQueued:
		cancelled, err := s.store.MarkCancelled(ctx, jobID)
		if err != nil {
			// Lost the race with a dispatch that happened between the
			// FIFO removal attempt and now; cancel it as running.
			if s.pool.Cancel(jobID) {
				return nil
			}
			return err
		}
		if cancelled.StartedAt != nil {
			// Dispatched between the status read and the transition: the
			// store record is settled but an executor is still holding a
			// slot and must be signalled to stop.
			s.pool.Cancel(jobID)
		}
		s.concurrency.Release(j.Owner, jobID)
		s.logger.Info("queued job cancelled", slog.String("job_id", jobID.String()))
		return nil

	case job.StatusRunning:
		if s.pool.Cancel(jobID) {
			return nil
		}
		// The job finished while we were looking at it.
		return fmt.Errorf("%w: job already finished", job.ErrInvalidState)

	default:
		return fmt.Errorf("%w: job already %s", job.ErrInvalidState, j.Status)
	}
}

// sweepLoop periodically evicts expired terminal jobs and idle rate
// windows.
func (s *Service) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(context.Background(), s.cfg.Retention)
			if err != nil {
				s.logger.Error("job sweep error", slog.String("error", err.Error()))
			} else if removed > 0 {
				s.logger.Debug("swept terminal jobs", slog.Int("removed", removed))
			}

			if s.cfg.RateWindowTTL > 0 {
				s.rates.Sweep(s.cfg.RateWindowTTL)
			}
		}
	}
}
