// Package memory provides the in-memory job.Store implementation: the
// authoritative table of all known jobs and their lifecycle state.
//
// The queue is process-local by design, so this is the production store,
// not just a test double. Terminal jobs are retained for a bounded window
// and evicted by Sweep to bound memory.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/admitq/id"
	"github.com/xraph/admitq/job"
)

// Ensure Store implements job.Store at compile time.
var _ job.Store = (*Store)(nil)

// Store is a fully in-memory implementation of job.Store.
// Safe for concurrent access.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job

	// now is swappable for tests.
	now func() time.Time
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Job),
		now:  time.Now,
	}
}

// Create persists a newly admitted job in queued state.
func (m *Store) Create(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return job.ErrAlreadyExists
	}
	m.jobs[key] = j.Clone()
	return nil
}

// Get retrieves a copy of a job by id.
func (m *Store) Get(_ context.Context, jobID id.ID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j.Clone(), nil
}

// Delete removes a job by id.
func (m *Store) Delete(_ context.Context, jobID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return job.ErrNotFound
	}
	delete(m.jobs, key)
	return nil
}

// MarkRunning transitions queued → running and sets StartedAt.
//
// A job already in running state means two worker slots claimed the same
// id, which is a defect in the dispatch path, so it fails loudly.
func (m *Store) MarkRunning(_ context.Context, jobID id.ID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}

	if j.Status == job.StatusRunning {
		panic(fmt.Sprintf("memory: job %s claimed by two workers", j.ID))
	}
	if j.Status != job.StatusQueued {
		return nil, fmt.Errorf("%w: %s → running", job.ErrInvalidState, j.Status)
	}

	now := m.now().UTC()
	j.Status = job.StatusRunning
	j.StartedAt = &now
	return j.Clone(), nil
}

// MarkCompleted transitions running → completed with the given result.
func (m *Store) MarkCompleted(_ context.Context, jobID id.ID, result json.RawMessage) (*job.Job, error) {
	return m.finish(jobID, job.StatusCompleted, result, "")
}

// MarkFailed transitions running → failed (or queued → failed for jobs
// rejected before execution) with the given error.
func (m *Store) MarkFailed(_ context.Context, jobID id.ID, jobErr error) (*job.Job, error) {
	msg := "unknown error"
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return m.finish(jobID, job.StatusFailed, nil, msg)
}

// MarkCancelled transitions queued → cancelled or running → cancelled.
func (m *Store) MarkCancelled(_ context.Context, jobID id.ID) (*job.Job, error) {
	return m.finish(jobID, job.StatusCancelled, nil, "")
}

// finish performs a terminal transition. Terminal states are absorbing:
// a second terminal transition returns ErrInvalidState and leaves the
// first outcome untouched.
func (m *Store) finish(jobID id.ID, status job.Status, result json.RawMessage, errMsg string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}
	if j.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s → %s", job.ErrInvalidState, j.Status, status)
	}
	if status == job.StatusCompleted && j.Status != job.StatusRunning {
		return nil, fmt.Errorf("%w: %s → completed", job.ErrInvalidState, j.Status)
	}

	now := m.now().UTC()
	j.Status = status
	j.FinishedAt = &now
	j.Result = result
	j.Error = errMsg
	return j.Clone(), nil
}

// SetProgress updates the progress of a running job. Progress for a job
// that already finished is discarded without error: a late report from an
// abandoned execution is expected, not a defect.
func (m *Store) SetProgress(_ context.Context, jobID id.ID, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return job.ErrNotFound
	}
	if j.Status != job.StatusRunning {
		return nil
	}
	j.Progress = progress
	return nil
}

// ListByOwner returns the owner's jobs ordered by EnqueuedAt descending.
func (m *Store) ListByOwner(_ context.Context, owner string) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, 8)
	for _, j := range m.jobs {
		if j.Owner != owner {
			continue
		}
		result = append(result, j.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].EnqueuedAt.After(result[k].EnqueuedAt)
	})

	return result, nil
}

// CountActive returns how many of the owner's jobs are queued or running.
func (m *Store) CountActive(_ context.Context, owner string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, j := range m.jobs {
		if j.Owner == owner && !j.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

// Sweep evicts terminal jobs whose FinishedAt is older than retention.
func (m *Store) Sweep(_ context.Context, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().UTC().Add(-retention)
	removed := 0
	for key, j := range m.jobs {
		if j.Status.Terminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(m.jobs, key)
			removed++
		}
	}
	return removed, nil
}
