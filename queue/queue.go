package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/admitq/id"
	"github.com/xraph/admitq/job"
)

// ErrCapacityExceeded is the backpressure signal: the FIFO is full and new
// admissions must be refused rather than buffered unboundedly.
var ErrCapacityExceeded = errors.New("queue: capacity exceeded")

// FIFO is a bounded first-in-first-out queue of admitted jobs. Arrival
// order is the only priority: no job type or identifier jumps the queue.
// It is safe for concurrent use.
type FIFO struct {
	capacity int

	mu      sync.Mutex
	entries []*job.Job
	members map[string]struct{}

	// wake is signaled on Push so an idle dispatcher can stop waiting.
	wake chan struct{}
}

// NewFIFO creates a bounded FIFO holding at most capacity pending jobs.
// Zero or negative capacity means unbounded.
func NewFIFO(capacity int) *FIFO {
	return &FIFO{
		capacity: capacity,
		members:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Push appends the job to the tail. It returns the job's 1-based queue
// position and the resulting queue length, or ErrCapacityExceeded when the
// FIFO is full (the returned length is then the current one).
//
// A job id may appear in the queue at most once; pushing a duplicate is an
// internal defect and panics.
func (q *FIFO) Push(j *job.Job) (position, length int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && len(q.entries) >= q.capacity {
		return 0, len(q.entries), ErrCapacityExceeded
	}

	key := j.ID.String()
	if _, dup := q.members[key]; dup {
		panic(fmt.Sprintf("queue: job %s pushed twice", key))
	}

	q.entries = append(q.entries, j)
	q.members[key] = struct{}{}

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return len(q.entries), len(q.entries), nil
}

// Pop removes and returns the head of the queue, or nil when empty.
func (q *FIFO) Pop() *job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}

	j := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	delete(q.members, j.ID.String())
	return j
}

// Remove atomically takes the job out of the queue, preserving the order
// of the remaining entries. It reports whether the job was still queued;
// false means it was already popped (or never queued).
func (q *FIFO) Remove(jobID id.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := jobID.String()
	if _, ok := q.members[key]; !ok {
		return false
	}

	for i, j := range q.entries {
		if j.ID.String() == key {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.members, key)
	return true
}

// Len returns the number of jobs currently queued.
func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Wake returns a channel that receives a token after each Push. The
// dispatcher waits on it instead of polling when the queue is empty.
func (q *FIFO) Wake() <-chan struct{} {
	return q.wake
}
