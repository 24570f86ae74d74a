// Package admitq provides an in-process job admission and execution
// queue: it accepts asynchronous work requests, admits them under
// per-caller rate and concurrency limits, queues admitted work in a
// bounded FIFO with backpressure, and executes it on a fixed worker pool
// while exposing status and progress to callers.
//
// admitq is a library, not a service. The transport layer resolves each
// caller to an opaque identifier string and maps structured refusals back
// to response codes; admitq never constructs transport responses itself.
//
// # Quick Start
//
//	q, err := admitq.New(
//	    admitq.WithConfig(cfg),
//	    admitq.WithLogger(logger),
//	)
//
//	admitq.Register(q, job.NewDefinition("backtest", runBacktest,
//	    job.WithTimeout(10*time.Minute)))
//
//	q.Start(ctx)
//	defer q.Stop(shutdownCtx)
//
//	res, err := admitq.Submit(ctx, q, callerID, "backtest", input)
//	var refusal *admitq.Refusal
//	if errors.As(err, &refusal) {
//	    // transport maps refusal.Kind / RetryAfter to a 429 or 503
//	}
//
// # Architecture
//
// A submission passes the gates in order: executor lookup (unknown types
// are permanent errors), the per-identifier sliding-window rate limiter,
// the per-identifier concurrency cap, and the bounded FIFO. Once queued,
// a single dispatcher feeds jobs to worker slots in strict arrival order,
// with a randomized smoothing delay between starts. The in-memory store is
// the single source of truth for job state; the queue is process-local and
// best-effort by design.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package admitq
