package job

import (
	"encoding/json"
	"time"

	"github.com/xraph/admitq/id"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusQueued means the job was admitted and is waiting in the FIFO.
	StatusQueued Status = "queued"
	// StatusRunning means a worker slot is currently executing the job.
	StatusRunning Status = "running"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job failed (executor error or timeout).
	StatusFailed Status = "failed"
	// StatusCancelled means the job was explicitly cancelled.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is an absorbing state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job represents a unit of work admitted into the queue.
//
// ID, Type, Payload, and Owner are immutable after admission. Status,
// timestamps, Progress, Result, and Error are mutated only by the store's
// transition operations, which enforce the state machine:
//
//	queued → running → completed
//	queued → running → failed
//	queued → cancelled
//	running → cancelled
type Job struct {
	ID      id.ID  `json:"id"`
	Type    string `json:"type"`
	Payload []byte `json:"payload,omitempty"`

	// Owner is the opaque caller identifier used for rate and
	// concurrency accounting. The core never interprets it.
	Owner string `json:"owner"`

	Status     Status          `json:"status"`
	Progress   float64         `json:"progress"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`

	// Timeout is the per-job execution deadline. Zero means the
	// queue-wide default applies.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Clone returns a deep copy of the job. Stores hand out clones so callers
// can never race with internal mutation.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Payload != nil {
		cp.Payload = make([]byte, len(j.Payload))
		copy(cp.Payload, j.Payload)
	}
	if j.Result != nil {
		cp.Result = make(json.RawMessage, len(j.Result))
		copy(cp.Result, j.Result)
	}
	if j.StartedAt != nil {
		ts := *j.StartedAt
		cp.StartedAt = &ts
	}
	if j.FinishedAt != nil {
		ts := *j.FinishedAt
		cp.FinishedAt = &ts
	}
	return &cp
}
