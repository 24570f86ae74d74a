// Package queue provides the bounded FIFO of admitted-but-not-yet-started
// jobs and the wait-time estimator.
//
// # FIFO
//
// [FIFO] is the single ordering authority: jobs dequeue strictly in
// arrival order regardless of type or owner. Capacity is the system's
// backpressure valve — once the queue is full, Push fails with
// [ErrCapacityExceeded] and the admission layer refuses the request
// instead of buffering it.
//
// Cancellation of a queued job goes through [FIFO.Remove], which takes the
// entry out atomically so it can never be dispatched afterwards.
//
// # Estimator
//
// [Estimator] keeps a moving average of recent run durations (seeded with
// a configured default before any history exists) and turns a queue
// position into an estimated wait:
//
//	wait = position × averageDuration / workerSlots
package queue
