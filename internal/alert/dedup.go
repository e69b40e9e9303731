package alert

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Deduper wraps an observer and suppresses repeat critical alerts carrying
// the same body within a window.
//
// Logic per body:
//   - First occurrence in the window: pass through.
//   - Further occurrences below the aggregate threshold: suppress.
//   - Occurrence hitting the threshold: pass through once with an "[xN]"
//     title prefix (something is looping).
//   - Beyond the threshold: suppress until the window expires.
//
// Analysis alerts always pass through. A zero window disables dedup.
type Deduper struct {
	next      Observer
	window    time.Duration
	threshold int

	mu   sync.Mutex
	seen map[string]*dedupState
}

type dedupState struct {
	windowStart time.Time
	count       int
}

// NewDeduper wraps next. threshold values below 1 default to 5.
func NewDeduper(next Observer, window time.Duration, threshold int) *Deduper {
	if threshold < 1 {
		threshold = 5
	}
	return &Deduper{
		next:      next,
		window:    window,
		threshold: threshold,
		seen:      make(map[string]*dedupState),
	}
}

// Notify implements Observer.
func (d *Deduper) Notify(a Alert) error {
	if d.window <= 0 || a.Kind != KindCritical {
		return d.next.Notify(a)
	}

	key := a.Body()
	now := a.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	d.mu.Lock()
	st, ok := d.seen[key]
	if !ok || now.Sub(st.windowStart) > d.window {
		st = &dedupState{windowStart: now}
		d.seen[key] = st
	}
	st.count++
	count := st.count
	d.prune(now)
	d.mu.Unlock()

	switch {
	case count == 1:
		return d.next.Notify(a)
	case count == d.threshold:
		a.Title = fmt.Sprintf("[x%d] %s", count, a.Title)
		return d.next.Notify(a)
	default:
		slog.Debug("alert suppressed by dedup window",
			"title", a.Title,
			"recent_count", count,
			"window", d.window,
		)
		return nil
	}
}

// prune drops expired windows. Caller holds the lock.
func (d *Deduper) prune(now time.Time) {
	for key, st := range d.seen {
		if now.Sub(st.windowStart) > d.window {
			delete(d.seen, key)
		}
	}
}
