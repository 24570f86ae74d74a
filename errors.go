package admitq

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Admission refusals. All are transient except ErrUnknownJobType.
	ErrRateLimitExceeded        = errors.New("admitq: request rate limit exceeded")
	ErrConcurrencyLimitExceeded = errors.New("admitq: concurrent job limit exceeded")
	ErrQueueCapacityExceeded    = errors.New("admitq: queue capacity exceeded")

	// ErrUnknownJobType means no executor is registered for the submitted
	// type. This is a configuration error, not a retryable condition.
	ErrUnknownJobType = errors.New("admitq: unknown job type")
)

// RefusalKind classifies an admission refusal.
type RefusalKind string

const (
	// RefusalRateLimit means the caller exceeded its request rate window.
	RefusalRateLimit RefusalKind = "rate_limit"
	// RefusalConcurrencyLimit means the caller has too many jobs in flight.
	RefusalConcurrencyLimit RefusalKind = "concurrency_limit"
	// RefusalQueueCapacity means the FIFO is full (backpressure).
	RefusalQueueCapacity RefusalKind = "queue_capacity"
)

// Refusal is a structured admission rejection. It is returned as an error
// from Submit but represents a policy decision, not a fault: the transport
// layer inspects it to choose a status code and retry headers. Use
// errors.As to extract it, or errors.Is against the sentinel errors above.
type Refusal struct {
	// Kind classifies the refusal.
	Kind RefusalKind

	// Reason is a short human-readable explanation.
	Reason string

	// RetryAfter is a hint for when the caller may retry. For rate
	// refusals it is exact (when the window frees up); for the others it
	// is a fixed backoff suggestion.
	RetryAfter time.Duration

	// QueueLength is the FIFO length at decision time.
	QueueLength int
}

// Error implements the error interface.
func (r *Refusal) Error() string {
	return fmt.Sprintf("admitq: admission refused (%s): %s", r.Kind, r.Reason)
}

// Unwrap maps the refusal to its sentinel so errors.Is works.
func (r *Refusal) Unwrap() error {
	switch r.Kind {
	case RefusalRateLimit:
		return ErrRateLimitExceeded
	case RefusalConcurrencyLimit:
		return ErrConcurrencyLimitExceeded
	case RefusalQueueCapacity:
		return ErrQueueCapacityExceeded
	default:
		return nil
	}
}
