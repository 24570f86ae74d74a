package limiter

import (
	"sync"
	"time"
)

// Decision is the outcome of an admission check. Refusals are data, not
// errors: the caller decides how to surface them.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	// Only meaningful for rate decisions.
	Remaining int

	// ResetAfter is how long until the oldest counted request leaves the
	// window, i.e. when a rejected caller may retry. Zero when Allowed.
	ResetAfter time.Duration

	// Reason is a short human-readable refusal explanation.
	Reason string
}

// rateWindow tracks recent request timestamps for a single identifier.
// Each window has its own lock so unrelated identifiers never serialize.
type rateWindow struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// RateLimiter is a sliding-window request-rate gate keyed by caller
// identifier. Windows are created lazily on first check and evicted by
// Sweep after inactivity. It is safe for concurrent use.
//
// Check is side-effect free (beyond pruning expired timestamps); only
// Record counts a request. This lets the caller check, run the remaining
// admission checks, and commit the request only once all of them pass.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.RWMutex
	windows map[string]*rateWindow

	// now is swappable for tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per identifier
// within each sliding window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Check reports whether the identifier may issue another request. It does
// not count the request; call Record once the request is admitted.
func (l *RateLimiter) Check(identifier string) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: true}
	}

	w := l.windowFor(identifier)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = now
	w.prune(now.Add(-l.window))

	if len(w.stamps) < l.limit {
		return Decision{
			Allowed:   true,
			Remaining: l.limit - len(w.stamps) - 1,
		}
	}

	return Decision{
		Allowed:    false,
		ResetAfter: w.stamps[0].Add(l.window).Sub(now),
		Reason:     "request rate limit exceeded",
	}
}

// Record registers one admitted request for the identifier. Call it
// exactly once per admission, after every admission check has passed.
func (l *RateLimiter) Record(identifier string) {
	if l.limit <= 0 {
		return
	}

	w := l.windowFor(identifier)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = now
	w.prune(now.Add(-l.window))
	w.stamps = append(w.stamps, now)
}

// Sweep evicts windows idle for longer than maxIdle and returns how many
// were removed.
func (l *RateLimiter) Sweep(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		w.mu.Lock()
		idle := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// windowFor returns the identifier's window, creating it on first use.
func (l *RateLimiter) windowFor(identifier string) *rateWindow {
	l.mu.RLock()
	w, ok := l.windows[identifier]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[identifier]; ok {
		return w
	}
	w = &rateWindow{lastSeen: l.now()}
	l.windows[identifier] = w
	return w
}

// prune drops timestamps older than the cutoff. Caller holds w.mu.
func (w *rateWindow) prune(cutoff time.Time) {
	keep := 0
	for ; keep < len(w.stamps); keep++ {
		if w.stamps[keep].After(cutoff) {
			break
		}
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}
}
