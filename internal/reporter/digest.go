package reporter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nvoss/logvigil/internal/alert"
)

// Digest batches alerts instead of forwarding them one by one and
// flushes a summary to its sink on a fixed interval. Useful when a noisy
// source would otherwise turn a push channel into a firehose.
type Digest struct {
	sink     alert.Observer
	interval time.Duration

	mu        sync.Mutex
	since     time.Time
	critical  int
	analyses  int
	byMessage map[string]int
	bySource  map[string]int

	stop chan struct{}
	done chan struct{}
}

// NewDigest creates a digest observer flushing to sink every interval.
// Intervals below one second default to one hour. Call Close to flush
// the remainder and stop the loop.
func NewDigest(sink alert.Observer, interval time.Duration) *Digest {
	if interval < time.Second {
		interval = time.Hour
	}
	d := &Digest{
		sink:      sink,
		interval:  interval,
		since:     time.Now(),
		byMessage: make(map[string]int),
		bySource:  make(map[string]int),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

// Notify implements alert.Observer. Alerts are recorded, not forwarded.
func (d *Digest) Notify(a alert.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch a.Kind {
	case alert.KindCritical:
		d.critical++
		d.byMessage[a.Body()]++
		if src := a.Source(); src != "" {
			d.bySource[src]++
		}
	default:
		d.analyses++
	}
	return nil
}

func (d *Digest) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.stop:
			return
		}
	}
}

// Flush sends the accumulated summary to the sink and resets the
// counters. A period with no alerts sends nothing.
func (d *Digest) Flush() {
	d.mu.Lock()
	critical := d.critical
	analyses := d.analyses
	byMessage := d.byMessage
	bySource := d.bySource
	since := d.since

	d.critical = 0
	d.analyses = 0
	d.byMessage = make(map[string]int)
	d.bySource = make(map[string]int)
	d.since = time.Now()
	d.mu.Unlock()

	if critical == 0 && analyses == 0 {
		return
	}

	until := time.Now()
	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s - %s\n\n",
		since.Local().Format("Jan 02 15:04"),
		until.Local().Format("Jan 02 15:04"))

	fmt.Fprintf(&b, "Critical alerts: %d", critical)
	if critical > 0 {
		fmt.Fprintf(&b, " (%s)", formatBreakdown(byMessage))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Analysis updates: %d\n", analyses)

	if len(bySource) > 0 {
		fmt.Fprintf(&b, "Sources: %s\n", formatBreakdown(bySource))
	}

	d.sink.Notify(alert.Alert{
		Timestamp: until,
		Kind:      alert.KindAnalysis,
		Title:     fmt.Sprintf("ALERT DIGEST (%d critical)", critical),
		Analysis:  b.String(),
	})
}

// Close flushes the remainder and stops the flush loop.
func (d *Digest) Close() error {
	close(d.stop)
	<-d.done
	d.Flush()
	return nil
}

// formatBreakdown turns a map[string]int into "foo ×2, bar ×1" sorted by
// count descending, name ascending on ties.
func formatBreakdown(m map[string]int) string {
	type item struct {
		name  string
		count int
	}

	items := make([]item, 0, len(m))
	for name, count := range m {
		items = append(items, item{name, count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].name < items[j].name
	})

	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s ×%d", it.name, it.count)
	}
	return strings.Join(parts, ", ")
}
