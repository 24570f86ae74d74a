package queue

import (
	"sync"
	"time"
)

// estimatorSamples is how many recent run durations the moving average
// considers.
const estimatorSamples = 20

// Estimator predicts how long a newly queued job will wait before a worker
// slot picks it up, based on a moving average of recently completed run
// durations. It is safe for concurrent use.
type Estimator struct {
	mu      sync.Mutex
	samples [estimatorSamples]time.Duration
	count   int
	next    int
	seed    time.Duration
}

// NewEstimator creates an estimator seeded with a default duration used
// until real completions provide history.
func NewEstimator(seed time.Duration) *Estimator {
	return &Estimator{seed: seed}
}

// Record adds one completed run duration to the moving window.
func (e *Estimator) Record(d time.Duration) {
	if d < 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples[e.next] = d
	e.next = (e.next + 1) % estimatorSamples
	if e.count < estimatorSamples {
		e.count++
	}
}

// Average returns the moving average of recorded durations, or the seed
// default when no history exists.
func (e *Estimator) Average() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count == 0 {
		return e.seed
	}

	var total time.Duration
	for i := range e.count {
		total += e.samples[i]
	}
	return total / time.Duration(e.count)
}

// Wait estimates the wait for a job at the given 1-based queue position
// with the given number of worker slots:
//
//	position × averageRecentDuration / slots
//
// The estimate is point-in-time; it is not recomputed as the queue drains.
func (e *Estimator) Wait(position, slots int) time.Duration {
	if position <= 0 {
		return 0
	}
	if slots <= 0 {
		slots = 1
	}
	return time.Duration(position) * e.Average() / time.Duration(slots)
}
