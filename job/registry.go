package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ProgressFunc reports execution progress as a percentage in [0, 100].
// Reports arriving after the job reached a terminal state are discarded.
type ProgressFunc func(pct float64)

// HandlerFunc is a type-erased job executor that accepts a raw JSON
// payload and returns a raw JSON result. The typed Definition[T, R] is
// converted to a HandlerFunc at registration time by closing over JSON
// codec calls and the typed handler.
type HandlerFunc func(ctx context.Context, payload []byte, report ProgressFunc) (json.RawMessage, error)

// Registry maps job types to type-erased executor functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	opts     map[string]Options
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		opts:     make(map[string]Options),
	}
}

// RegisterDefinition registers a typed job definition. The generic handler
// is wrapped in a closure that JSON-unmarshals the payload into T before
// calling the typed handler and JSON-marshals the R result afterwards.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	handler := func(ctx context.Context, payload []byte, report ProgressFunc) (json.RawMessage, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job type %q: %w", def.Type, err)
			}
		}

		result, err := def.Handler(ctx, t, report)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job type %q: %w", def.Type, err)
		}
		return data, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[def.Type] = handler
	r.opts[def.Type] = def.Opts
}

// Register registers a raw handler for the given job type, replacing any
// previous registration.
func (r *Registry) Register(jobType string, handler HandlerFunc, opts ...Option) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
	r.opts[jobType] = o
}

// Get returns the handler for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Get(jobType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Options returns the registered options for the given job type, falling
// back to DefaultOptions for unknown types.
func (r *Registry) Options(jobType string) Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.opts[jobType]; ok {
		return o
	}
	return DefaultOptions()
}

// Types returns all registered job types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
