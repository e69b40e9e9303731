// Package server exposes the HTTP API: upload-and-analyze, sample
// dataset management, monitor status, stored reports, health, and
// Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nvoss/logvigil/internal/download"
	"github.com/nvoss/logvigil/internal/loader"
	"github.com/nvoss/logvigil/internal/metrics"
	"github.com/nvoss/logvigil/internal/monitor"
	"github.com/nvoss/logvigil/internal/store"
)

const (
	DefaultAddr      = ":8080"
	DefaultMaxUpload = 50 << 20 // 50MB
)

// Config holds the HTTP server settings.
type Config struct {
	Addr      string
	UploadDir string
	MaxUpload int64
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUpload <= 0 {
		c.MaxUpload = DefaultMaxUpload
	}
	return c
}

// Deps are the collaborators the handlers delegate to. Analyzer may be
// nil when no API key is configured; uploads then skip the AI step.
type Deps struct {
	Loader   *loader.Loader
	Analyzer monitor.Analyzer
	Reports  *store.DB
	Samples  *download.Client
	Monitor  *monitor.Controller
	Metrics  *metrics.Metrics
}

// Server is the HTTP API front end.
type Server struct {
	cfg      Config
	loader   *loader.Loader
	analyzer monitor.Analyzer
	reports  *store.DB
	samples  *download.Client
	ctrl     *monitor.Controller
	metrics  *metrics.Metrics
}

func New(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		loader:   deps.Loader,
		analyzer: deps.Analyzer,
		reports:  deps.Reports,
		samples:  deps.Samples,
		ctrl:     deps.Monitor,
		metrics:  deps.Metrics,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.timed("/api/upload", s.handleUpload))
	mux.HandleFunc("GET /api/sources", s.timed("/api/sources", s.handleSources))
	mux.HandleFunc("POST /api/download/{name}", s.timed("/api/download", s.handleDownload))
	mux.HandleFunc("GET /api/status", s.timed("/api/status", s.handleStatus))
	mux.HandleFunc("GET /api/reports", s.timed("/api/reports", s.handleReports))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// timed records request latency under a fixed route label, keeping
// wildcard paths out of the metric.
func (s *Server) timed(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		s.metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	}
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
		// Uploads may sit in analysis for up to the model timeout.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	slog.Info("http server stopped")
	return <-errc
}
