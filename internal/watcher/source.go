// Package watcher provides the log sources the monitor tails: files,
// system metrics, and external process logs.
package watcher

import (
	"context"

	"github.com/nvoss/logvigil/internal/entry"
	"github.com/nvoss/logvigil/internal/pattern"
)

// Sink receives normalized entries from running sources. The monitor
// supplies one; it must be safe for concurrent use by every source.
type Sink func(entry.Entry)

// Source produces log entries from one origin until its context is
// canceled. Run blocks. A nil return means the source finished on its own
// terms (context done, or the origin is gone for good); an error means it
// failed and may be restarted by a Supervisor.
type Source interface {
	// Name tags entries produced by this source.
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// lineEntry normalizes one raw line against the critical pattern set.
func lineEntry(line, source string, patterns *pattern.Set) entry.Entry {
	return entry.FromLine(line, source, patterns.Match(line))
}
