package reporter

import (
	"log/slog"

	"github.com/nvoss/logvigil/internal/alert"
	"github.com/nvoss/logvigil/internal/format"
)

// Log mirrors every alert into the structured log, useful when the
// process runs headless and stdout is not watched.
type Log struct{}

// Notify implements alert.Observer.
func (Log) Notify(a alert.Alert) error {
	switch a.Kind {
	case alert.KindCritical:
		slog.Warn("critical alert",
			"title", a.Title,
			"source", a.Source(),
			"message", format.Excerpt(a.Body(), bodyLimit),
		)
	default:
		slog.Info("analysis alert", "title", a.Title, "chars", len(a.Analysis))
	}
	return nil
}
