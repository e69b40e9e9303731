package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nvoss/logvigil/internal/entry"
)

// Usage is one resource sample, in percent.
type Usage struct {
	CPU    float64
	Memory float64
	Disk   float64
}

// Sampler reads current resource usage. The default implementation reads
// /proc and the root filesystem; tests substitute their own.
type Sampler interface {
	Sample() (Usage, error)
}

// SystemSource samples resource usage on an interval and emits a critical
// entry for every metric above the threshold.
type SystemSource struct {
	interval  time.Duration
	threshold float64
	sampler   Sampler
}

// NewSystemSource creates a system-metrics source. A nil sampler reads
// the host. Zero interval and threshold fall back to 30s and 90%.
func NewSystemSource(interval time.Duration, threshold float64, sampler Sampler) *SystemSource {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if threshold <= 0 {
		threshold = 90
	}
	if sampler == nil {
		sampler = &procSampler{
			statPath:    "/proc/stat",
			meminfoPath: "/proc/meminfo",
			diskMount:   "/",
		}
	}
	return &SystemSource{interval: interval, threshold: threshold, sampler: sampler}
}

// Name implements Source.
func (s *SystemSource) Name() string { return "system:metrics" }

// Run implements Source. The first sample happens immediately, then once
// per interval.
func (s *SystemSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sampleOnce(sink)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *SystemSource) sampleOnce(sink Sink) {
	u, err := s.sampler.Sample()
	if err != nil {
		slog.Error("sampling system metrics", "error", err)
		return
	}

	checks := []struct {
		name  string
		value float64
	}{
		{"CPU", u.CPU},
		{"memory", u.Memory},
		{"disk", u.Disk},
	}
	for _, c := range checks {
		if c.value <= s.threshold {
			continue
		}
		msg := fmt.Sprintf("high %s usage detected: %.1f%%", c.name, c.value)
		sink(entry.New(entry.LevelError, msg, s.Name(), true))
	}
}

// procSampler samples the host via /proc and statfs. CPU usage is the
// delta between consecutive samples, so the first reading reports 0.
type procSampler struct {
	statPath    string
	meminfoPath string
	diskMount   string

	mu        sync.Mutex
	prevIdle  uint64
	prevTotal uint64
}

func (p *procSampler) Sample() (Usage, error) {
	var u Usage

	data, err := os.ReadFile(p.statPath)
	if err != nil {
		return u, fmt.Errorf("reading cpu stat: %w", err)
	}
	idle, total, err := parseCPUStat(string(data))
	if err != nil {
		return u, fmt.Errorf("parsing cpu stat: %w", err)
	}

	p.mu.Lock()
	if p.prevTotal > 0 && total > p.prevTotal {
		dTotal := float64(total - p.prevTotal)
		dIdle := float64(idle - p.prevIdle)
		u.CPU = (1 - dIdle/dTotal) * 100
	}
	p.prevIdle, p.prevTotal = idle, total
	p.mu.Unlock()

	data, err = os.ReadFile(p.meminfoPath)
	if err != nil {
		return u, fmt.Errorf("reading meminfo: %w", err)
	}
	u.Memory, err = parseMeminfo(string(data))
	if err != nil {
		return u, fmt.Errorf("parsing meminfo: %w", err)
	}

	u.Disk, err = diskUsage(p.diskMount)
	if err != nil {
		return u, fmt.Errorf("reading disk usage: %w", err)
	}

	return u, nil
}

// parseCPUStat extracts idle and total jiffies from the aggregate cpu
// line of /proc/stat. Idle includes iowait.
func parseCPUStat(data string) (idle, total uint64, err error) {
	for _, line := range strings.Split(data, "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		if len(fields) < 4 {
			return 0, 0, fmt.Errorf("malformed cpu line: %q", line)
		}
		for i, f := range fields {
			v, perr := strconv.ParseUint(f, 10, 64)
			if perr != nil {
				return 0, 0, fmt.Errorf("malformed cpu field %q: %w", f, perr)
			}
			total += v
			if i == 3 || i == 4 {
				idle += v
			}
		}
		return idle, total, nil
	}
	return 0, 0, fmt.Errorf("no aggregate cpu line")
}

// parseMeminfo computes used memory percent from MemTotal and
// MemAvailable.
func parseMeminfo(data string) (float64, error) {
	var totalKB, availKB uint64
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			availKB, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if totalKB == 0 {
		return 0, fmt.Errorf("MemTotal missing")
	}
	return float64(totalKB-availKB) / float64(totalKB) * 100, nil
}

// diskUsage computes used percent for the filesystem holding mount the
// way df does: reserved blocks stay out of the denominator.
func diskUsage(mount string) (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(mount, &st); err != nil {
		return 0, err
	}
	used := st.Blocks - st.Bfree
	denom := used + st.Bavail
	if denom == 0 {
		return 0, nil
	}
	return float64(used) / float64(denom) * 100, nil
}
