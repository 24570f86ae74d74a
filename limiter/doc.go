// Package limiter implements the per-caller admission gates: a
// sliding-window request-rate limiter and an in-flight concurrency cap.
//
// Both limiters key their state by an opaque caller identifier supplied by
// the transport layer (user id, IP hash, session key). Identifiers are
// fully independent: each has its own lock, so unrelated callers never
// serialize against each other.
//
// The rate limiter separates the idempotent [RateLimiter.Check] from the
// mutating [RateLimiter.Record] so a request can pass through several
// admission gates before being committed:
//
//	if d := rates.Check(caller); !d.Allowed {
//	    return refuse(d)
//	}
//	if d := concurrency.Check(caller); !d.Allowed {
//	    return refuse(d)
//	}
//	// ... enqueue ...
//	concurrency.Register(caller, jobID)
//	rates.Record(caller)
package limiter
