package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nvoss/logvigil/internal/alert"
	"github.com/nvoss/logvigil/internal/format"
)

// Console prints alerts to a terminal, one block per alert. Writes are
// serialized so concurrent watchers do not interleave lines.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console observer. A nil writer means stdout.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Notify implements alert.Observer.
func (c *Console) Notify(a alert.Alert) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] %s\n", a.Timestamp.Format("15:04:05"), FormatTitle(a))

	if a.Kind == alert.KindCritical && a.Entry != nil {
		fmt.Fprintf(&b, "  source: %s\n", a.Entry.Source)
		fmt.Fprintf(&b, "  %s\n", format.Excerpt(a.Entry.Message, bodyLimit))
	} else {
		b.WriteString(a.Analysis)
		b.WriteString("\n")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, b.String())
	return err
}
