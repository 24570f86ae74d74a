// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware with timeout and
// cancellation enforcement, and a Pool that dispatches queued jobs onto a
// fixed set of concurrent slots.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/admitq/id"
	"github.com/xraph/admitq/job"
	"github.com/xraph/admitq/middleware"
	"github.com/xraph/admitq/queue"
)

var (
	// ErrExecutionTimeout marks a job that exceeded its execution
	// deadline. The computation is abandoned and a late result discarded.
	ErrExecutionTimeout = errors.New("worker: execution timeout exceeded")

	// ErrJobCancelled is the cancellation cause used to signal a running
	// executor to stop cooperatively.
	ErrJobCancelled = errors.New("worker: job cancelled")
)

// Releaser decrements the owning identifier's in-flight count when a job
// reaches a terminal state. Implemented by limiter.ConcurrencyLimiter.
type Releaser interface {
	Release(identifier string, jobID id.ID)
}

// Executor runs a single job through middleware and the registered
// handler, then performs the terminal state transition, releases the
// owner's concurrency slot, and feeds the wait estimator.
type Executor struct {
	registry       *job.Registry
	store          job.Store
	limits         Releaser
	estimator      *queue.Estimator
	defaultTimeout time.Duration
	cancelGrace    time.Duration
	mw             middleware.Middleware
	logger         *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
// defaultTimeout applies to jobs without a per-type timeout; cancelGrace
// bounds how long a cancelled handler may take to acknowledge before the
// cancellation is forced.
func NewExecutor(
	registry *job.Registry,
	store job.Store,
	limits Releaser,
	estimator *queue.Estimator,
	defaultTimeout time.Duration,
	cancelGrace time.Duration,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Minute
	}
	if cancelGrace <= 0 {
		cancelGrace = 5 * time.Second
	}
	return &Executor{
		registry:       registry,
		store:          store,
		limits:         limits,
		estimator:      estimator,
		defaultTimeout: defaultTimeout,
		cancelGrace:    cancelGrace,
		mw:             middleware.Chain(mws...),
		logger:         logger,
	}
}

// outcome carries the handler's result across the abandonment boundary.
type outcome struct {
	result json.RawMessage
	err    error
}

// Execute runs a claimed (already running) job to a terminal state.
//
// The handler runs in its own goroutine so the executor can abandon it:
// on deadline the job fails with ErrExecutionTimeout, on cancellation it
// becomes cancelled once the handler acknowledges or the grace period
// fires. A result produced after abandonment is discarded. Execute never
// returns an error — every failure mode ends as job state, not as a
// crash of the worker slot.
func (e *Executor) Execute(ctx context.Context, j *job.Job) {
	defer func() {
		if e.limits != nil {
			e.limits.Release(j.Owner, j.ID)
		}
	}()

	handler, ok := e.registry.Get(j.Type)
	if !ok {
		// The admission path checks this, so reaching here means the
		// registry changed under a queued job. Fail the job, not the pool.
		e.finishFailed(j, fmt.Errorf("no executor registered for job type %q", j.Type))
		return
	}

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := func(pct float64) {
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		if err := e.store.SetProgress(context.Background(), j.ID, pct); err != nil {
			e.logger.Warn("progress update dropped",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	terminal := func(hctx context.Context) (json.RawMessage, error) {
		return handler(hctx, j.Payload, report)
	}

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		result, err := e.mw(ctx, j, terminal)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		e.finish(j, o, timeout, time.Since(start))

	case <-ctx.Done():
		cause := context.Cause(ctx)
		if errors.Is(cause, context.DeadlineExceeded) {
			// Deadline exceeded: abandon the computation. Its eventual
			// send lands in the buffered channel and is garbage collected.
			e.finishFailed(j, fmt.Errorf("%w after %s", ErrExecutionTimeout, timeout))
			return
		}

		// Cancelled, either per-job or pool shutdown. Cooperative: give
		// the handler a bounded window to acknowledge before forcing the
		// transition.
		select {
		case <-done:
		case <-time.After(e.cancelGrace):
			e.logger.Warn("cancelled job did not acknowledge in time, abandoning",
				slog.String("job_id", j.ID.String()),
				slog.String("job_type", j.Type),
			)
		}
		e.finishCancelled(j)
	}
}

// finish applies the handler outcome as a terminal transition.
func (e *Executor) finish(j *job.Job, o outcome, timeout, elapsed time.Duration) {
	if o.err != nil {
		// A handler that returns its context's cancellation error is
		// acknowledging a cancel, not reporting a failure of its own. A
		// deadline error is the timeout, whoever noticed it first.
		if errors.Is(o.err, context.Canceled) {
			e.finishCancelled(j)
			return
		}
		if errors.Is(o.err, context.DeadlineExceeded) {
			e.finishFailed(j, fmt.Errorf("%w after %s", ErrExecutionTimeout, timeout))
			return
		}
		e.finishFailed(j, o.err)
		return
	}

	if _, err := e.store.MarkCompleted(context.Background(), j.ID, o.result); err != nil {
		e.logger.Error("failed to mark job completed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if e.estimator != nil {
		e.estimator.Record(elapsed)
	}

	e.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Duration("elapsed", elapsed),
	)
}

func (e *Executor) finishFailed(j *job.Job, jobErr error) {
	if _, err := e.store.MarkFailed(context.Background(), j.ID, jobErr); err != nil {
		e.logger.Error("failed to mark job failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.String("error", jobErr.Error()),
	)
}

func (e *Executor) finishCancelled(j *job.Job) {
	if _, err := e.store.MarkCancelled(context.Background(), j.ID); err != nil {
		e.logger.Error("failed to mark job cancelled",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	e.logger.Info("job cancelled",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
	)
}
