package admitq

import (
	"errors"
	"time"
)

// Config holds configuration for the Service.
type Config struct {
	// RateLimit is the maximum number of submissions each identifier may
	// make within RateWindow. Zero disables rate limiting.
	RateLimit int

	// RateWindow is the sliding window over which RateLimit is counted.
	RateWindow time.Duration

	// MaxConcurrentPerCaller caps how many jobs a single identifier may
	// have queued or running at once. Zero disables the cap. It is
	// independent of WorkerSlots: a single identifier may occupy every
	// slot unless this is set below WorkerSlots.
	MaxConcurrentPerCaller int

	// MaxQueueLength bounds the FIFO of admitted-but-not-started jobs.
	// Submissions beyond it are refused (backpressure). Zero means
	// unbounded.
	MaxQueueLength int

	// WorkerSlots is the number of concurrent execution slots.
	WorkerSlots int

	// ExecutionTimeout is the default per-job deadline. Job definitions
	// may override it per type.
	ExecutionTimeout time.Duration

	// CancelGrace bounds how long a cancelled executor may take to
	// acknowledge before the cancellation is forced.
	CancelGrace time.Duration

	// JitterMin and JitterMax bound the randomized smoothing delay the
	// scheduler sleeps between successive dispatches. Zero JitterMax
	// disables jitter.
	JitterMin time.Duration
	JitterMax time.Duration

	// DispatchRate optionally caps pool-wide job starts per second with
	// a token bucket (burst DispatchBurst). Zero disables it.
	DispatchRate  float64
	DispatchBurst int

	// Retention is how long terminal jobs stay readable before the
	// sweeper evicts them.
	Retention time.Duration

	// SweepInterval is how often the sweeper runs.
	SweepInterval time.Duration

	// RateWindowTTL is how long an identifier's rate window may sit idle
	// before it is evicted.
	RateWindowTTL time.Duration

	// DefaultJobDuration seeds the wait estimator until real completions
	// provide history.
	DefaultJobDuration time.Duration

	// ConcurrencyRetryAfter is the fixed retry hint attached to
	// concurrency refusals.
	ConcurrencyRetryAfter time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RateLimit:              10,
		RateWindow:             time.Minute,
		MaxConcurrentPerCaller: 2,
		MaxQueueLength:         20,
		WorkerSlots:            4,
		ExecutionTimeout:       10 * time.Minute,
		CancelGrace:            5 * time.Second,
		JitterMin:              100 * time.Millisecond,
		JitterMax:              500 * time.Millisecond,
		Retention:              30 * time.Minute,
		SweepInterval:          time.Minute,
		RateWindowTTL:          5 * time.Minute,
		DefaultJobDuration:     30 * time.Second,
		ConcurrencyRetryAfter:  5 * time.Second,
	}
}

// Validate rejects configurations the queue cannot run with.
func (c Config) Validate() error {
	if c.WorkerSlots <= 0 {
		return errors.New("admitq: WorkerSlots must be positive")
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return errors.New("admitq: RateWindow must be positive when RateLimit is set")
	}
	if c.JitterMax > 0 && c.JitterMin > c.JitterMax {
		return errors.New("admitq: JitterMin must not exceed JitterMax")
	}
	if c.Retention > 0 && c.SweepInterval <= 0 {
		return errors.New("admitq: SweepInterval must be positive when Retention is set")
	}
	return nil
}
