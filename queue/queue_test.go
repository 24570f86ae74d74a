package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/admitq/id"
	"github.com/xraph/admitq/job"
)

func newQueuedJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Type:       "backtest",
		Owner:      "u1",
		Status:     job.StatusQueued,
		EnqueuedAt: time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// FIFO ordering and capacity
// ---------------------------------------------------------------------------

func TestFIFO_Order(t *testing.T) {
	q := NewFIFO(10)

	jobs := []*job.Job{newQueuedJob(), newQueuedJob(), newQueuedJob()}
	for i, j := range jobs {
		pos, length, err := q.Push(j)
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if pos != i+1 || length != i+1 {
			t.Fatalf("push %d: pos=%d length=%d, want %d", i, pos, length, i+1)
		}
	}

	for i, want := range jobs {
		got := q.Pop()
		if got == nil || got.ID != want.ID {
			t.Fatalf("pop %d returned wrong job", i)
		}
	}

	if q.Pop() != nil {
		t.Fatal("empty queue should pop nil")
	}
}

func TestFIFO_Capacity(t *testing.T) {
	q := NewFIFO(2)

	if _, _, err := q.Push(newQueuedJob()); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if _, _, err := q.Push(newQueuedJob()); err != nil {
		t.Fatalf("push 2: %v", err)
	}

	_, length, err := q.Push(newQueuedJob())
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("push 3 err = %v, want ErrCapacityExceeded", err)
	}
	if length != 2 {
		t.Fatalf("refusal reported length %d, want 2", length)
	}

	// Draining frees capacity.
	q.Pop()
	if _, _, err := q.Push(newQueuedJob()); err != nil {
		t.Fatalf("push after pop: %v", err)
	}
}

func TestFIFO_Unbounded(t *testing.T) {
	q := NewFIFO(0)
	for range 100 {
		if _, _, err := q.Push(newQueuedJob()); err != nil {
			t.Fatalf("unbounded push failed: %v", err)
		}
	}
	if q.Len() != 100 {
		t.Fatalf("Len = %d, want 100", q.Len())
	}
}

func TestFIFO_Remove(t *testing.T) {
	q := NewFIFO(10)

	j1, j2, j3 := newQueuedJob(), newQueuedJob(), newQueuedJob()
	q.Push(j1)
	q.Push(j2)
	q.Push(j3)

	if !q.Remove(j2.ID) {
		t.Fatal("Remove should report true for a queued job")
	}
	if q.Remove(j2.ID) {
		t.Fatal("second Remove should report false")
	}

	// Remaining order is preserved.
	if got := q.Pop(); got.ID != j1.ID {
		t.Fatal("expected j1 first")
	}
	if got := q.Pop(); got.ID != j3.ID {
		t.Fatal("expected j3 after removal of j2")
	}
}

func TestFIFO_DuplicatePushPanics(t *testing.T) {
	q := NewFIFO(10)
	j := newQueuedJob()
	q.Push(j)

	defer func() {
		if recover() == nil {
			t.Fatal("pushing the same job id twice should panic")
		}
	}()
	q.Push(j)
}

func TestFIFO_WakeSignal(t *testing.T) {
	q := NewFIFO(10)

	select {
	case <-q.Wake():
		t.Fatal("no wake token should exist before a push")
	default:
	}

	q.Push(newQueuedJob())

	select {
	case <-q.Wake():
	default:
		t.Fatal("push should leave a wake token")
	}
}

// ---------------------------------------------------------------------------
// Estimator
// ---------------------------------------------------------------------------

func TestEstimator_SeedDefault(t *testing.T) {
	e := NewEstimator(30 * time.Second)

	if got := e.Average(); got != 30*time.Second {
		t.Fatalf("Average with no history = %v, want seed 30s", got)
	}
	if got := e.Wait(2, 1); got != time.Minute {
		t.Fatalf("Wait(2,1) = %v, want 1m", got)
	}
}

func TestEstimator_MovingAverage(t *testing.T) {
	e := NewEstimator(30 * time.Second)

	e.Record(10 * time.Second)
	e.Record(20 * time.Second)

	if got := e.Average(); got != 15*time.Second {
		t.Fatalf("Average = %v, want 15s", got)
	}
}

func TestEstimator_WindowBounded(t *testing.T) {
	e := NewEstimator(time.Second)

	// Fill the window with 1s samples, then overwrite with 3s ones.
	for range estimatorSamples {
		e.Record(time.Second)
	}
	for range estimatorSamples {
		e.Record(3 * time.Second)
	}

	if got := e.Average(); got != 3*time.Second {
		t.Fatalf("Average = %v, want 3s after window rolled over", got)
	}
}

func TestEstimator_WaitScalesWithSlots(t *testing.T) {
	e := NewEstimator(0)
	e.Record(40 * time.Second)

	if got := e.Wait(4, 2); got != 80*time.Second {
		t.Fatalf("Wait(4,2) = %v, want 80s", got)
	}
	if got := e.Wait(0, 2); got != 0 {
		t.Fatalf("Wait(0,2) = %v, want 0", got)
	}
	// Zero slots is treated as one.
	if got := e.Wait(1, 0); got != 40*time.Second {
		t.Fatalf("Wait(1,0) = %v, want 40s", got)
	}
}

func TestEstimator_IgnoresNegative(t *testing.T) {
	e := NewEstimator(10 * time.Second)
	e.Record(-time.Second)
	if got := e.Average(); got != 10*time.Second {
		t.Fatalf("Average = %v, want untouched seed", got)
	}
}
