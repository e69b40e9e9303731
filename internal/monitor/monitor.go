// Package monitor runs the real-time engine: sources feed entries into a
// bounded buffer, critical entries alert immediately, and a scheduler
// periodically hands batches to the analyzer.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvoss/logvigil/internal/alert"
	"github.com/nvoss/logvigil/internal/entry"
	"github.com/nvoss/logvigil/internal/metrics"
	"github.com/nvoss/logvigil/internal/watcher"
)

// Contract defaults. Config values of zero fall back to these.
const (
	DefaultBufferSize     = 1000
	DefaultScanInterval   = 30 * time.Second
	DefaultDrainMax       = 100
	DefaultAlertThreshold = 5
)

// Alert titles the controller dispatches with.
const (
	TitleCritical = "CRITICAL ISSUE DETECTED"
	TitleAnalysis = "LOG ANALYSIS UPDATE"
)

var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNoSources      = errors.New("no sources to watch")
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
)

// Analyzer summarizes a batch of log entries. Implementations may take
// as long as their own timeout allows; errors mean no analysis this
// cycle, never a stopped monitor.
type Analyzer interface {
	Analyze(ctx context.Context, entries []entry.Entry) (string, error)
}

// Config tunes the engine. Zero values mean defaults.
type Config struct {
	BufferSize     int
	ScanInterval   time.Duration
	DrainMax       int
	AlertThreshold int
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.DrainMax <= 0 {
		c.DrainMax = DefaultDrainMax
	}
	if c.AlertThreshold <= 0 {
		c.AlertThreshold = DefaultAlertThreshold
	}
	return c
}

// Status is a point-in-time snapshot of the controller, safe to call in
// any state.
type Status struct {
	State          State     `json:"state"`
	Running        bool      `json:"running"`
	BufferLength   int       `json:"buffer_length"`
	Dropped        uint64    `json:"dropped"`
	CriticalCount  uint64    `json:"critical_count"`
	Observers      int       `json:"observers"`
	LastAnalysis   string    `json:"last_analysis,omitempty"`
	LastAnalysisAt time.Time `json:"last_analysis_at"`
}

// Controller owns the buffer, the source goroutines and the analysis
// scheduler. The zero value is not usable; construct with NewController.
type Controller struct {
	cfg        Config
	buf        *Buffer
	dispatcher *alert.Dispatcher
	analyzer   Analyzer
	metrics    *metrics.Metrics

	running       atomic.Bool
	criticalCount atomic.Uint64

	mu             sync.Mutex
	state          State
	cancel         context.CancelFunc
	lastAnalysis   string
	lastAnalysisAt time.Time

	wg sync.WaitGroup
}

// NewController wires the engine together. analyzer may be nil when no
// AI backend is configured; batches over the threshold are then
// discarded with a log line.
func NewController(cfg Config, dispatcher *alert.Dispatcher, analyzer Analyzer, m *metrics.Metrics) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:        cfg,
		buf:        NewBuffer(cfg.BufferSize),
		dispatcher: dispatcher,
		analyzer:   analyzer,
		metrics:    m,
		state:      StateIdle,
	}
}

// Start launches one goroutine per source plus the analysis scheduler.
// A second Start while running is a warned no-op.
func (c *Controller) Start(sources ...watcher.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		slog.Warn("monitor already running, ignoring start")
		return ErrAlreadyRunning
	}
	if len(sources) == 0 {
		return ErrNoSources
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StateRunning
	c.running.Store(true)
	c.metrics.MonitorUp.Set(1)

	for _, src := range sources {
		c.wg.Add(1)
		go func(src watcher.Source) {
			defer c.wg.Done()
			if err := src.Run(ctx, c.process); err != nil && ctx.Err() == nil {
				slog.Error("source stopped", "source", src.Name(), "error", err)
			}
		}(src)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.schedule(ctx)
	}()

	slog.Info("monitoring started",
		"sources", len(sources),
		"scan_interval", c.cfg.ScanInterval,
		"alert_threshold", c.cfg.AlertThreshold,
	)
	return nil
}

// Stop cancels all goroutines and waits for them. Stopping an idle
// controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	c.running.Store(false)
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()

	c.mu.Lock()
	c.state = StateIdle
	c.cancel = nil
	c.mu.Unlock()

	c.metrics.MonitorUp.Set(0)
	slog.Info("monitoring stopped")
}

// Running reports whether the controller is between Start and Stop.
func (c *Controller) Running() bool { return c.running.Load() }

// Status never blocks on the scheduler or sources.
func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	last, lastAt := c.lastAnalysis, c.lastAnalysisAt
	c.mu.Unlock()

	return Status{
		State:          state,
		Running:        c.running.Load(),
		BufferLength:   c.buf.Len(),
		Dropped:        c.buf.Dropped(),
		CriticalCount:  c.criticalCount.Load(),
		Observers:      c.dispatcher.Count(),
		LastAnalysis:   last,
		LastAnalysisAt: lastAt,
	}
}

// process is the sink handed to every source. Entries are buffered for
// the scheduler; critical ones additionally alert right away.
func (c *Controller) process(e entry.Entry) {
	if c.buf.Add(e) {
		c.metrics.DroppedTotal.Inc()
	}
	c.metrics.EntriesTotal.WithLabelValues(e.Source).Inc()
	c.metrics.BufferLength.Set(float64(c.buf.Len()))

	if e.Critical {
		c.criticalCount.Add(1)
		c.metrics.CriticalTotal.WithLabelValues(e.Source).Inc()
		c.metrics.AlertsTotal.WithLabelValues(string(alert.KindCritical)).Inc()
		c.dispatcher.Critical(TitleCritical, e)
	}
}

// schedule runs one analysis pass per scan interval until canceled.
func (c *Controller) schedule(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.analyzeBatch(ctx)
		}
	}
}

// analyzeBatch drains one batch and, when it carries enough critical
// entries, asks the analyzer for a summary. Batches below the threshold
// are discarded, bounding analysis cost.
func (c *Controller) analyzeBatch(ctx context.Context) {
	batch := c.buf.Drain(c.cfg.DrainMax)
	c.metrics.BufferLength.Set(float64(c.buf.Len()))
	if len(batch) == 0 {
		return
	}

	critical := 0
	for _, e := range batch {
		if e.Critical {
			critical++
		}
	}
	if critical < c.cfg.AlertThreshold {
		slog.Debug("batch below alert threshold, discarding",
			"entries", len(batch),
			"critical", critical,
			"threshold", c.cfg.AlertThreshold,
		)
		c.metrics.AnalysesTotal.WithLabelValues("skipped").Inc()
		return
	}

	if c.analyzer == nil {
		slog.Debug("no analyzer configured, discarding batch", "critical", critical)
		c.metrics.AnalysesTotal.WithLabelValues("skipped").Inc()
		return
	}

	text, err := c.analyzer.Analyze(ctx, batch)
	if err != nil {
		slog.Error("log analysis failed", "error", err)
		c.metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return
	}
	if text == "" {
		c.metrics.AnalysesTotal.WithLabelValues("skipped").Inc()
		return
	}

	c.mu.Lock()
	c.lastAnalysis = text
	c.lastAnalysisAt = time.Now()
	c.mu.Unlock()

	c.metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	c.metrics.AlertsTotal.WithLabelValues(string(alert.KindAnalysis)).Inc()
	c.dispatcher.Analysis(TitleAnalysis, text)
	slog.Info("analysis dispatched", "entries", len(batch), "critical", critical)
}
