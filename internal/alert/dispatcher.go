package alert

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nvoss/logvigil/internal/entry"
)

// Observer receives dispatched alerts. Implementations must tolerate calls
// from watcher and scheduler goroutines.
type Observer interface {
	Notify(Alert) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Alert) error

func (f ObserverFunc) Notify(a Alert) error { return f(a) }

// Dispatcher fans alerts out to registered observers synchronously, in
// registration order, on the dispatching goroutine. Observer failures are
// isolated: an error or panic in one observer never blocks the rest and
// never reaches the caller.
type Dispatcher struct {
	mu        sync.Mutex
	observers []Observer
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register appends an observer. Safe to call while monitoring runs.
func (d *Dispatcher) Register(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Count returns the number of registered observers.
func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// Critical sends an immediate alert for one critical entry.
func (d *Dispatcher) Critical(title string, e entry.Entry) {
	d.dispatch(Alert{Timestamp: time.Now(), Kind: KindCritical, Title: title, Entry: &e})
}

// Analysis sends an analysis-update alert.
func (d *Dispatcher) Analysis(title, text string) {
	d.dispatch(Alert{Timestamp: time.Now(), Kind: KindAnalysis, Title: title, Analysis: text})
}

func (d *Dispatcher) dispatch(a Alert) {
	d.mu.Lock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()

	for _, o := range observers {
		invoke(o, a)
	}
}

// invoke runs one observer behind a failure boundary.
func invoke(o Observer, a Alert) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("alert observer panicked", "kind", a.Kind, "title", a.Title, "panic", r)
		}
	}()
	if err := o.Notify(a); err != nil {
		slog.Error("alert observer failed", "kind", a.Kind, "title", a.Title, "error", err)
	}
}
