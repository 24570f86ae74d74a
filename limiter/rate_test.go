package limiter

import (
	"testing"
	"time"
)

// fakeClock lets tests walk time forward deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRateLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(limit, window)
	l.now = clock.Now
	return l, clock
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestRateLimiter(3, time.Minute)

	for i := range 3 {
		d := l.Check("u1")
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		l.Record("u1")
	}

	d := l.Check("u1")
	if d.Allowed {
		t.Fatal("request beyond the limit should be refused")
	}
	if d.ResetAfter <= 0 {
		t.Fatalf("refusal should carry a positive ResetAfter, got %v", d.ResetAfter)
	}
	if d.Reason == "" {
		t.Fatal("refusal should carry a reason")
	}
}

func TestRateLimiter_CheckDoesNotCount(t *testing.T) {
	l, _ := newTestRateLimiter(1, time.Minute)

	// Many checks without Record must not consume the budget.
	for range 10 {
		if d := l.Check("u1"); !d.Allowed {
			t.Fatal("Check alone must not consume the budget")
		}
	}

	l.Record("u1")
	if d := l.Check("u1"); d.Allowed {
		t.Fatal("budget should be consumed after Record")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	l, _ := newTestRateLimiter(3, time.Minute)

	if d := l.Check("u1"); d.Remaining != 2 {
		t.Fatalf("first check Remaining = %d, want 2", d.Remaining)
	}
	l.Record("u1")
	l.Record("u1")
	if d := l.Check("u1"); d.Remaining != 0 {
		t.Fatalf("third check Remaining = %d, want 0", d.Remaining)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestRateLimiter(2, time.Minute)

	l.Record("u1")
	clock.Advance(30 * time.Second)
	l.Record("u1")

	if d := l.Check("u1"); d.Allowed {
		t.Fatal("limit reached, should be refused")
	}

	// 31s later the first request has left the window.
	clock.Advance(31 * time.Second)
	if d := l.Check("u1"); !d.Allowed {
		t.Fatal("oldest request left the window, should be allowed again")
	}
}

func TestRateLimiter_ResetAfterTracksOldest(t *testing.T) {
	l, clock := newTestRateLimiter(2, time.Minute)

	l.Record("u1")
	l.Record("u1")
	clock.Advance(10 * time.Second)

	d := l.Check("u1")
	if d.Allowed {
		t.Fatal("should be refused")
	}
	if d.ResetAfter != 50*time.Second {
		t.Fatalf("ResetAfter = %v, want 50s", d.ResetAfter)
	}
}

func TestRateLimiter_IdentifiersIndependent(t *testing.T) {
	l, _ := newTestRateLimiter(1, time.Minute)

	l.Record("u1")
	if d := l.Check("u1"); d.Allowed {
		t.Fatal("u1 should be refused")
	}
	if d := l.Check("u2"); !d.Allowed {
		t.Fatal("u2 must not be affected by u1's requests")
	}
}

// Scenario from the admission contract: limit 2 per 60s, three requests
// inside one second → allowed, allowed, refused with ResetAfter ≈ 60s.
func TestRateLimiter_BurstScenario(t *testing.T) {
	l, clock := newTestRateLimiter(2, time.Minute)

	if d := l.Check("u1"); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	l.Record("u1")

	clock.Advance(500 * time.Millisecond)
	if d := l.Check("u1"); !d.Allowed {
		t.Fatal("second request should be allowed")
	}
	l.Record("u1")

	clock.Advance(500 * time.Millisecond)
	d := l.Check("u1")
	if d.Allowed {
		t.Fatal("third request should be refused")
	}
	if d.ResetAfter != 59*time.Second {
		t.Fatalf("ResetAfter = %v, want 59s", d.ResetAfter)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	l, clock := newTestRateLimiter(5, time.Minute)

	l.Record("idle")
	l.Record("busy")

	clock.Advance(10 * time.Minute)
	l.Record("busy")

	removed := l.Sweep(5 * time.Minute)
	if removed != 1 {
		t.Fatalf("Sweep removed %d windows, want 1", removed)
	}

	l.mu.RLock()
	_, idleKept := l.windows["idle"]
	_, busyKept := l.windows["busy"]
	l.mu.RUnlock()

	if idleKept {
		t.Fatal("idle window should have been evicted")
	}
	if !busyKept {
		t.Fatal("busy window should have been kept")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	l, _ := newTestRateLimiter(0, time.Minute)

	for range 100 {
		if d := l.Check("u1"); !d.Allowed {
			t.Fatal("zero limit disables rate limiting")
		}
		l.Record("u1")
	}
}
