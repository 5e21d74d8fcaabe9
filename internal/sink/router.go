package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pageprobe/report"
)

// Router fans out records to all configured sinks. A failing sink is
// logged and does not stop delivery to the others; the first error is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, o report.Outcome) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, o); err != nil {
			r.logger.Warn("sink: send outcome failed", "check", o.Check, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendSnapshot(ctx context.Context, snap report.Snapshot) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendSnapshot(ctx, snap); err != nil {
			r.logger.Warn("sink: send snapshot failed", "snapshot", snap.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
