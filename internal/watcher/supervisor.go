package watcher

import (
	"context"
	"log/slog"
	"time"
)

// Supervisor wraps a Source with automatic restart on failure. A source
// returning nil is finished and never restarted.
type Supervisor struct {
	source      Source
	restartWait time.Duration
	maxRestarts int
}

// Supervise wraps source. On failure it waits restartWait before running
// the source again. maxRestarts of 0 means unlimited restarts.
func Supervise(source Source, restartWait time.Duration, maxRestarts int) *Supervisor {
	return &Supervisor{
		source:      source,
		restartWait: restartWait,
		maxRestarts: maxRestarts,
	}
}

// Name implements Source.
func (s *Supervisor) Name() string { return s.source.Name() }

// Run implements Source, running the wrapped source until it finishes
// cleanly, the context is canceled, or restarts are exhausted.
func (s *Supervisor) Run(ctx context.Context, sink Sink) error {
	restarts := 0
	for {
		err := s.source.Run(ctx, sink)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		restarts++
		if s.maxRestarts > 0 && restarts > s.maxRestarts {
			slog.Error("source exceeded max restarts",
				"source", s.source.Name(),
				"max", s.maxRestarts,
				"error", err,
			)
			return err
		}

		slog.Warn("source failed, restarting",
			"source", s.source.Name(),
			"error", err,
			"restart_count", restarts,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.restartWait):
		}
	}
}
