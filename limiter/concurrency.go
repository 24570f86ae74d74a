package limiter

import (
	"fmt"
	"sync"

	"github.com/xraph/admitq/id"
)

// callerState tracks the in-flight jobs for a single identifier.
type callerState struct {
	mu   sync.Mutex
	jobs map[string]struct{}
}

// ConcurrencyLimiter caps how many jobs may be in flight (queued or
// running) per identifier. It is safe for concurrent use.
//
// Check must be re-run at admission time rather than cached: counts
// change asynchronously as jobs reach terminal states.
type ConcurrencyLimiter struct {
	max int

	mu      sync.RWMutex
	callers map[string]*callerState
}

// NewConcurrencyLimiter creates a limiter capping max in-flight jobs per
// identifier. Zero or negative max disables the cap.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		max:     max,
		callers: make(map[string]*callerState),
	}
}

// Check reports whether the identifier may admit another job.
func (l *ConcurrencyLimiter) Check(identifier string) Decision {
	if l.max <= 0 {
		return Decision{Allowed: true}
	}

	s := l.stateFor(identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) >= l.max {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("concurrent job limit reached (%d)", l.max),
		}
	}
	return Decision{Allowed: true}
}

// Register associates an admitted job with the identifier, incrementing
// its in-flight count.
func (l *ConcurrencyLimiter) Register(identifier string, jobID id.ID) {
	s := l.stateFor(identifier)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID.String()] = struct{}{}
}

// Release drops the association when the job reaches a terminal state.
// Releasing an unknown job is a no-op: terminal transitions and explicit
// cancels may race, and the second release must not underflow the count.
func (l *ConcurrencyLimiter) Release(identifier string, jobID id.ID) {
	l.mu.RLock()
	s, ok := l.callers[identifier]
	l.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID.String())
}

// Count returns the identifier's current in-flight job count.
func (l *ConcurrencyLimiter) Count(identifier string) int {
	l.mu.RLock()
	s, ok := l.callers[identifier]
	l.mu.RUnlock()
	if !ok {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// stateFor returns the identifier's state, creating it on first use.
func (l *ConcurrencyLimiter) stateFor(identifier string) *callerState {
	l.mu.RLock()
	s, ok := l.callers[identifier]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok = l.callers[identifier]; ok {
		return s
	}
	s = &callerState{jobs: make(map[string]struct{})}
	l.callers[identifier] = s
	return s
}
