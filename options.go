package admitq

import (
	"log/slog"

	"github.com/xraph/admitq/job"
	"github.com/xraph/admitq/middleware"
)

// Option configures a Service.
type Option func(*Service) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = l
		return nil
	}
}

// WithStore sets the job store. Defaults to the in-memory store.
func WithStore(st job.Store) Option {
	return func(s *Service) error {
		s.store = st
		return nil
	}
}

// WithMiddleware appends middleware to the execution chain. The built-in
// panic recovery always runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Service) error {
		s.mws = append(s.mws, mws...)
		return nil
	}
}
