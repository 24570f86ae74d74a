package job

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/admitq/id"
)

// Store errors.
var (
	// ErrNotFound is returned when a job id is unknown to the store.
	ErrNotFound = errors.New("job: not found")
	// ErrAlreadyExists is returned when creating a job whose id is taken.
	ErrAlreadyExists = errors.New("job: already exists")
	// ErrInvalidState is returned when a transition is attempted from a
	// state the state machine does not allow (e.g. cancelling a job that
	// already completed). Terminal states are absorbing.
	ErrInvalidState = errors.New("job: invalid state transition")
)

// Store is the authoritative table of all known jobs and their lifecycle
// state. All transition operations are atomic and enforce the state
// machine; once a job is terminal no further mutation is accepted.
type Store interface {
	// Create persists a newly admitted job in queued state.
	Create(ctx context.Context, j *Job) error

	// Get retrieves a copy of a job by id.
	Get(ctx context.Context, jobID id.ID) (*Job, error)

	// Delete removes a job by id, used to roll back an admission that
	// failed after the job record was created.
	Delete(ctx context.Context, jobID id.ID) error

	// MarkRunning transitions queued → running and sets StartedAt.
	// Returns a copy of the claimed job, or ErrInvalidState if the job
	// is no longer queued (e.g. it was cancelled in the dispatch window).
	MarkRunning(ctx context.Context, jobID id.ID) (*Job, error)

	// MarkCompleted transitions running → completed, setting Result and
	// FinishedAt.
	MarkCompleted(ctx context.Context, jobID id.ID, result json.RawMessage) (*Job, error)

	// MarkFailed transitions running → failed, setting Error and
	// FinishedAt. It also accepts queued → failed for jobs rejected at
	// dispatch time (e.g. executor no longer registered).
	MarkFailed(ctx context.Context, jobID id.ID, jobErr error) (*Job, error)

	// MarkCancelled transitions queued → cancelled or running → cancelled.
	MarkCancelled(ctx context.Context, jobID id.ID) (*Job, error)

	// SetProgress updates the progress of a running job. Progress
	// reported after a terminal transition is discarded.
	SetProgress(ctx context.Context, jobID id.ID, progress float64) error

	// ListByOwner returns the owner's jobs (queued, running, and retained
	// terminal) ordered by EnqueuedAt descending.
	ListByOwner(ctx context.Context, owner string) ([]*Job, error)

	// CountActive returns the number of the owner's jobs currently in
	// queued or running state.
	CountActive(ctx context.Context, owner string) (int, error)

	// Sweep evicts terminal jobs whose FinishedAt is older than the
	// retention window and returns how many were removed.
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}
