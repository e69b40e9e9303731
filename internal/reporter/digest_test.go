package reporter

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvoss/logvigil/internal/alert"
)

type captureObserver struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (c *captureObserver) Notify(a alert.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureObserver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func (c *captureObserver) last() alert.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alerts[len(c.alerts)-1]
}

func newIdleDigest(t *testing.T, sink alert.Observer) *Digest {
	t.Helper()
	// One hour interval so flushes in the test are all manual.
	d := NewDigest(sink, time.Hour)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDigestFlushSummarizes(t *testing.T) {
	sink := &captureObserver{}
	d := newIdleDigest(t, sink)

	d.Notify(criticalAlert("db down"))
	d.Notify(criticalAlert("db down"))
	other := criticalAlert("disk full")
	other.Entry.Source = "system:metrics"
	d.Notify(other)
	d.Notify(alert.Alert{Kind: alert.KindAnalysis, Title: "LOG ANALYSIS UPDATE", Analysis: "text"})

	d.Flush()

	if sink.count() != 1 {
		t.Fatalf("sink got %d alerts, want 1 summary", sink.count())
	}
	got := sink.last()
	if got.Kind != alert.KindAnalysis {
		t.Errorf("summary kind = %q", got.Kind)
	}
	if got.Title != "ALERT DIGEST (3 critical)" {
		t.Errorf("summary title = %q", got.Title)
	}
	for _, want := range []string{
		"Critical alerts: 3",
		"db down ×2",
		"disk full ×1",
		"Analysis updates: 1",
		"system:metrics ×1",
	} {
		if !strings.Contains(got.Analysis, want) {
			t.Errorf("summary = %q, should contain %q", got.Analysis, want)
		}
	}
}

func TestDigestEmptyPeriodSendsNothing(t *testing.T) {
	sink := &captureObserver{}
	d := newIdleDigest(t, sink)

	d.Flush()

	if sink.count() != 0 {
		t.Errorf("sink got %d alerts, want none for an empty period", sink.count())
	}
}

func TestDigestResetsAfterFlush(t *testing.T) {
	sink := &captureObserver{}
	d := newIdleDigest(t, sink)

	d.Notify(criticalAlert("db down"))
	d.Flush()
	d.Flush()

	if sink.count() != 1 {
		t.Errorf("sink got %d alerts, want 1 (second flush had nothing)", sink.count())
	}
}

func TestDigestCloseFlushesRemainder(t *testing.T) {
	sink := &captureObserver{}
	d := NewDigest(sink, time.Hour)

	d.Notify(criticalAlert("db down"))
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if sink.count() != 1 {
		t.Fatalf("sink got %d alerts, want 1 after close", sink.count())
	}
	if !strings.Contains(sink.last().Analysis, "Critical alerts: 1") {
		t.Errorf("summary = %q", sink.last().Analysis)
	}
}

func TestDigestFlushesOnInterval(t *testing.T) {
	sink := &captureObserver{}
	d := NewDigest(sink, time.Second)
	defer d.Close()

	d.Notify(criticalAlert("db down"))

	deadline := time.Now().Add(3 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if sink.count() == 0 {
		t.Fatal("digest never flushed on its own interval")
	}
}

func TestFormatBreakdown(t *testing.T) {
	got := formatBreakdown(map[string]int{"beta": 2, "alpha": 2, "gamma": 5})
	want := "gamma ×5, alpha ×2, beta ×2"
	if got != want {
		t.Errorf("formatBreakdown = %q, want %q", got, want)
	}
}
