package job

import "time"

// Options configures per-type execution behavior.
type Options struct {
	// Timeout is the maximum duration a job of this type may run before
	// being forced to a failed state. Zero means the queue-wide default
	// applies.
	Timeout time.Duration
}

// DefaultOptions returns Options with no overrides; the queue-wide
// configuration supplies the effective values.
func DefaultOptions() Options {
	return Options{}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithTimeout sets the maximum execution duration for the job type.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}
