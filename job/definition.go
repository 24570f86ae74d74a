package job

import "context"

// Definition is a typed job definition with an executor function.
// T is the payload type and R the result type (both JSON-serializable).
type Definition[T, R any] struct {
	// Type is the unique tag selecting this executor.
	Type string

	// Handler runs the computation. It may call report to publish
	// percentage progress and should honor ctx cancellation, which is
	// used for both explicit cancels and the execution timeout.
	Handler func(ctx context.Context, payload T, report ProgressFunc) (R, error)

	// Opts configures per-type execution behavior such as the timeout.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T, R any](
	jobType string,
	handler func(ctx context.Context, payload T, report ProgressFunc) (R, error),
	opts ...Option,
) *Definition[T, R] {
	def := &Definition[T, R]{
		Type:    jobType,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
