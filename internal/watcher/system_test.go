package watcher

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvoss/logvigil/internal/entry"
)

type stubSampler struct {
	usage Usage
	err   error
}

func (s stubSampler) Sample() (Usage, error) { return s.usage, s.err }

type countingSampler struct {
	mu sync.Mutex
	n  int
}

func (c *countingSampler) Sample() (Usage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return Usage{}, nil
}

func (c *countingSampler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestSystemSourceEmitsOverThreshold(t *testing.T) {
	src := NewSystemSource(time.Hour, 90, stubSampler{usage: Usage{CPU: 95, Memory: 50, Disk: 10}})

	c := &collector{}
	src.sampleOnce(c.sink)

	entries := c.snapshot()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if want := "high CPU usage detected: 95.0%"; e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
	if !strings.Contains(e.Message, "95") {
		t.Errorf("Message %q does not contain the reading", e.Message)
	}
	if !e.Critical || e.Level != entry.LevelError {
		t.Errorf("critical/level = %v/%q, want true/ERROR", e.Critical, e.Level)
	}
	if e.Source != "system:metrics" {
		t.Errorf("Source = %q, want system:metrics", e.Source)
	}
}

func TestSystemSourceChecksAllMetrics(t *testing.T) {
	src := NewSystemSource(time.Hour, 90, stubSampler{usage: Usage{CPU: 95, Memory: 97.5, Disk: 99}})

	c := &collector{}
	src.sampleOnce(c.sink)

	entries := c.snapshot()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	wants := []string{
		"high CPU usage detected: 95.0%",
		"high memory usage detected: 97.5%",
		"high disk usage detected: 99.0%",
	}
	for i, want := range wants {
		if entries[i].Message != want {
			t.Errorf("entries[%d].Message = %q, want %q", i, entries[i].Message, want)
		}
	}
}

func TestSystemSourceThresholdIsStrict(t *testing.T) {
	src := NewSystemSource(time.Hour, 90, stubSampler{usage: Usage{CPU: 90, Memory: 90, Disk: 90}})

	c := &collector{}
	src.sampleOnce(c.sink)

	if got := c.len(); got != 0 {
		t.Errorf("got %d entries at exactly the threshold, want 0", got)
	}
}

func TestSystemSourceSamplerError(t *testing.T) {
	src := NewSystemSource(time.Hour, 90, stubSampler{err: errors.New("proc unavailable")})

	c := &collector{}
	src.sampleOnce(c.sink)

	if got := c.len(); got != 0 {
		t.Errorf("got %d entries from failed sample, want 0", got)
	}
}

func TestSystemSourceRunStopsOnCancel(t *testing.T) {
	sampler := &countingSampler{}
	src := NewSystemSource(10*time.Millisecond, 90, sampler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, (&collector{}).sink) }()

	if !waitFor(t, 2*time.Second, func() bool { return sampler.count() >= 2 }) {
		t.Fatalf("sampler ran %d times, want at least 2", sampler.count())
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop within 2s")
	}
}

func TestParseCPUStat(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantIdle  uint64
		wantTotal uint64
		wantErr   bool
	}{
		{
			name:      "idle and iowait counted",
			data:      "cpu  100 0 100 700 100 0 0 0 0 0\ncpu0 50 0 50 350 50 0 0 0 0 0\n",
			wantIdle:  800,
			wantTotal: 1000,
		},
		{
			name:      "short line",
			data:      "cpu  100 0 100 800\n",
			wantIdle:  800,
			wantTotal: 1000,
		},
		{
			name:    "malformed field",
			data:    "cpu  100 x 100 800\n",
			wantErr: true,
		},
		{
			name:    "aggregate line missing",
			data:    "cpu0 100 0 100 800\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idle, total, err := parseCPUStat(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if idle != tt.wantIdle || total != tt.wantTotal {
				t.Errorf("got idle=%d total=%d, want idle=%d total=%d", idle, total, tt.wantIdle, tt.wantTotal)
			}
		})
	}
}

func TestParseMeminfo(t *testing.T) {
	data := "MemTotal:       1000 kB\nMemFree:         100 kB\nMemAvailable:    250 kB\n"
	got, err := parseMeminfo(data)
	if err != nil {
		t.Fatalf("parseMeminfo() error = %v", err)
	}
	if math.Abs(got-75) > 1e-9 {
		t.Errorf("parseMeminfo() = %v, want 75", got)
	}

	if _, err := parseMeminfo("MemFree: 100 kB\n"); err == nil {
		t.Error("parseMeminfo() with missing MemTotal: error = nil, want error")
	}
}

func TestProcSamplerCPUDelta(t *testing.T) {
	dir := t.TempDir()
	statPath := filepath.Join(dir, "stat")
	meminfoPath := filepath.Join(dir, "meminfo")

	writeProc := func(stat string) {
		t.Helper()
		if err := os.WriteFile(statPath, []byte(stat), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeProc("cpu  100 0 100 800 0 0 0 0 0 0\n")
	if err := os.WriteFile(meminfoPath, []byte("MemTotal: 1000 kB\nMemAvailable: 600 kB\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &procSampler{statPath: statPath, meminfoPath: meminfoPath, diskMount: "/"}

	first, err := p.Sample()
	if err != nil {
		t.Fatalf("first Sample() error = %v", err)
	}
	if first.CPU != 0 {
		t.Errorf("first CPU reading = %v, want 0 (no baseline yet)", first.CPU)
	}
	if math.Abs(first.Memory-40) > 1e-9 {
		t.Errorf("Memory = %v, want 40", first.Memory)
	}

	// 1000 more jiffies, 500 of them idle.
	writeProc("cpu  400 0 300 1300 0 0 0 0 0 0\n")
	second, err := p.Sample()
	if err != nil {
		t.Fatalf("second Sample() error = %v", err)
	}
	if math.Abs(second.CPU-50) > 1e-9 {
		t.Errorf("second CPU reading = %v, want 50", second.CPU)
	}
}
