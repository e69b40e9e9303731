// logvigil ingests log files, watches live sources for critical
// patterns, and turns what it sees into statistics and AI-generated
// diagnoses. Alerts go out through console, ntfy and digest observers;
// analysis reports persist to SQLite and are served over an HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/nvoss/logvigil/internal/alert"
	"github.com/nvoss/logvigil/internal/analyzer"
	"github.com/nvoss/logvigil/internal/config"
	"github.com/nvoss/logvigil/internal/download"
	"github.com/nvoss/logvigil/internal/format"
	"github.com/nvoss/logvigil/internal/loader"
	"github.com/nvoss/logvigil/internal/metrics"
	"github.com/nvoss/logvigil/internal/monitor"
	"github.com/nvoss/logvigil/internal/pattern"
	"github.com/nvoss/logvigil/internal/reporter"
	"github.com/nvoss/logvigil/internal/server"
	"github.com/nvoss/logvigil/internal/stats"
	"github.com/nvoss/logvigil/internal/store"
	"github.com/nvoss/logvigil/internal/watcher"
)

var version = "dev"

// Restart policy for supervised watchers.
const (
	restartWait = 5 * time.Second
	maxRestarts = 5
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "monitor":
		runMonitor(os.Args[2:])
	case "analyze":
		runAnalyze(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "download":
		runDownload(os.Args[2:])
	case "sources":
		runSources(os.Args[2:])
	case "reports":
		runReports(os.Args[2:])
	case "version":
		fmt.Println("logvigil", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: logvigil <command> [flags]

Commands:
  monitor    watch log files, system metrics and kubectl logs in real time
  analyze    load a log file, compute statistics and an AI diagnosis
  serve      run the HTTP API (upload, download, reports, status)
  download   fetch a sample log dataset by name
  sources    list downloadable sample datasets
  reports    list stored analysis reports
  version    print version

Run 'logvigil <command> -h' for command flags.
`)
}

// --- monitor subcommand ---

func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	files := fs.String("file", "", "comma-separated log files to watch")
	system := fs.Bool("system", false, "watch system metrics (CPU, memory, disk)")
	kubernetes := fs.Bool("kubernetes", false, "watch kubectl logs")
	scenario := fs.String("scenario", "", "pattern scenario: "+strings.Join(pattern.Scenarios(), ", "))
	interval := fs.Duration("interval", 0, "analysis scan interval (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file.
	if *files != "" {
		cfg.Monitor.Files = strings.Split(*files, ",")
	}
	if *system {
		cfg.Monitor.System = true
	}
	if *kubernetes {
		cfg.Monitor.Kubernetes = true
	}
	if *scenario != "" {
		cfg.Monitor.Scenario = *scenario
	}
	if *interval > 0 {
		cfg.Monitor.ScanInterval = config.Duration{Duration: *interval}
	}

	setupLogging(cfg.Log.Level)

	slog.Info("logvigil starting", "version", version, "mode", "monitor")

	if err := runMonitorLoop(cfg); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func runMonitorLoop(cfg *config.Config) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	patterns := patternSet(cfg)
	sources := buildSources(cfg, patterns)
	if len(sources) == 0 {
		return errors.New("nothing to watch: pass -file, -system or -kubernetes, or configure sources")
	}

	dispatcher := alert.NewDispatcher()
	dispatcher.Register(reporter.NewConsole(nil))
	digest := registerNotifiers(cfg, dispatcher)
	if digest != nil {
		defer digest.Close()
	}

	ctrl := monitor.NewController(monitorConfig(cfg), dispatcher, buildAnalyzer(cfg), metrics.New())
	if err := ctrl.Start(sources...); err != nil {
		return err
	}
	defer ctrl.Stop()

	fmt.Printf("Monitoring %d source(s) with %d pattern(s). Press Ctrl+C to stop.\n",
		len(sources), patterns.Len())

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			return nil
		case <-statusTicker.C:
			printStatus(ctrl.Status())
		}
	}
}

func printStatus(st monitor.Status) {
	line := fmt.Sprintf("[%s] %s  buffer=%d  critical=%d",
		time.Now().Format("15:04:05"), st.State, st.BufferLength, st.CriticalCount)
	if st.Dropped > 0 {
		line += fmt.Sprintf("  dropped=%d", st.Dropped)
	}
	if !st.LastAnalysisAt.IsZero() {
		line += fmt.Sprintf("  last-analysis=%s ago", format.Duration(time.Since(st.LastAnalysisAt)))
	}
	fmt.Println(line)
}

// --- analyze subcommand ---

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	noStore := fs.Bool("no-store", false, "do not persist the report")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: logvigil analyze [flags] <file>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error") // quiet for CLI output

	entries, err := loader.New(patternSet(cfg)).Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading %s: %v\n", path, err)
		os.Exit(1)
	}

	report := &store.Report{
		Filename:     filepath.Base(path),
		TotalEntries: len(entries),
		Statistics:   stats.Compute(entries),
	}

	if a, err := analyzer.New(analyzerConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "AI analysis skipped: %v\n", err)
	} else if text, err := a.Analyze(context.Background(), entries); err != nil {
		fmt.Fprintf(os.Stderr, "AI analysis failed: %v\n", err)
	} else {
		report.Analysis = text
	}

	if !*noStore {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening report store: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Save(report); err != nil {
			fmt.Fprintf(os.Stderr, "error saving report: %v\n", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error encoding report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}
	printReport(report)
}

func printReport(r *store.Report) {
	s := r.Statistics

	fmt.Printf("File:          %s\n", r.Filename)
	fmt.Printf("Entries:       %d\n", s.TotalEntries)
	if !s.TimeRange.Start.IsZero() {
		fmt.Printf("Time range:    %s - %s\n",
			s.TimeRange.Start.Local().Format("2006-01-02 15:04:05"),
			s.TimeRange.End.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Errors:        %d\n", s.ErrorCount)
	fmt.Printf("Warnings:      %d\n", s.WarningCount)
	if len(s.Levels) > 0 {
		fmt.Printf("Levels:        %s\n", formatCounts(s.Levels))
	}
	if s.UniqueIPs > 0 {
		fmt.Printf("Unique IPs:    %d\n", s.UniqueIPs)
	}
	if len(s.StatusCodes) > 0 {
		fmt.Printf("Status codes:  %s\n", formatCounts(s.StatusCodes))
	}
	if len(s.TopEndpoints) > 0 {
		fmt.Println("Top endpoints:")
		for _, ep := range s.TopEndpoints {
			fmt.Printf("  %-40s %d\n", ep.Endpoint, ep.Count)
		}
	}
	if r.Analysis != "" {
		fmt.Printf("\nAnalysis:\n%s\n", r.Analysis)
	}
}

// formatCounts renders a count map as "key=n" pairs in key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

// --- serve subcommand ---

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	setupLogging(cfg.Log.Level)

	slog.Info("logvigil starting", "version", version, "mode", "serve", "addr", cfg.Server.Addr)

	if err := serve(cfg); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening report store: %w", err)
	}
	defer db.Close()
	slog.Info("report store opened", "path", cfg.Store.Path)

	m := metrics.New()
	dispatcher := alert.NewDispatcher()
	dispatcher.Register(reporter.Log{})
	digest := registerNotifiers(cfg, dispatcher)
	if digest != nil {
		defer digest.Close()
	}

	an := buildAnalyzer(cfg)
	patterns := patternSet(cfg)
	ctrl := monitor.NewController(monitorConfig(cfg), dispatcher, an, m)

	// Live monitoring runs alongside the API when sources are configured.
	if sources := buildSources(cfg, patterns); len(sources) > 0 {
		if err := ctrl.Start(sources...); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
		defer ctrl.Stop()
	}

	srv := server.New(server.Config{
		Addr:      cfg.Server.Addr,
		UploadDir: cfg.Server.UploadDir,
		MaxUpload: cfg.Server.MaxUploadMB << 20,
	}, server.Deps{
		Loader:   loader.New(patterns),
		Analyzer: an,
		Reports:  db,
		Samples:  download.New(),
		Monitor:  ctrl,
		Metrics:  m,
	})

	return srv.Run(ctx)
}

// --- download subcommand ---

func runDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	dir := fs.String("dir", "", "destination directory (default: upload dir)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: logvigil download [flags] <source>")
		os.Exit(2)
	}
	name := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error")

	dest := *dir
	if dest == "" {
		dest = cfg.Server.UploadDir
	}

	path, size, err := download.New().Download(context.Background(), name, dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Downloaded %s (%s)\n", path, format.Bytes(size))
}

// --- sources subcommand ---

func runSources(args []string) {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	fs.Parse(args)

	client := download.New()
	registry := client.Registry()
	for _, name := range client.Sources() {
		url := registry[name]
		if url == "" {
			url = "(generated locally)"
		}
		fmt.Printf("%-20s %s\n", name, url)
	}
}

// --- reports subcommand ---

func runReports(args []string) {
	fs := flag.NewFlagSet("reports", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", store.DefaultListLimit, "max reports to show")
	id := fs.String("id", "", "show a single report in full")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error")

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening report store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *id != "" {
		r, err := db.Get(*id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "no report with id %s\n", *id)
			} else {
				fmt.Fprintf(os.Stderr, "error reading report: %v\n", err)
			}
			os.Exit(1)
		}
		fmt.Printf("ID:            %s\n", r.ID)
		fmt.Printf("Created:       %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		printReport(&r)
		return
	}

	reports, err := db.List(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listing reports: %v\n", err)
		os.Exit(1)
	}
	if len(reports) == 0 {
		fmt.Println("No reports stored.")
		return
	}

	for _, r := range reports {
		ts := r.CreatedAt.Local().Format("2006-01-02 15:04:05")
		marker := " "
		if r.Analysis != "" {
			marker = "*"
		}
		fmt.Printf("%s %s %-28s %7d entries %5d errors  %s\n",
			ts, marker, r.Filename, r.TotalEntries, r.Statistics.ErrorCount, r.ID)
	}
	fmt.Printf("\nTotal: %d report(s), * = has analysis\n", len(reports))
}

// --- shared wiring ---

func patternSet(cfg *config.Config) *pattern.Set {
	set := pattern.ForScenario(cfg.Monitor.Scenario)
	set.Add(cfg.Monitor.Patterns...)
	return set
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		BufferSize:     cfg.Monitor.BufferSize,
		ScanInterval:   cfg.Monitor.ScanInterval.Duration,
		DrainMax:       cfg.Monitor.DrainMax,
		AlertThreshold: cfg.Monitor.AlertThreshold,
	}
}

func analyzerConfig(cfg *config.Config) analyzer.Config {
	return analyzer.Config{
		Model:      cfg.Analyzer.Model,
		KeyEnv:     cfg.Analyzer.KeyEnv,
		Timeout:    cfg.Analyzer.Timeout.Duration,
		MaxEntries: cfg.Analyzer.MaxEntries,
	}
}

// buildAnalyzer returns nil when no API key is configured; monitoring
// and uploads then run with alerting and statistics only.
func buildAnalyzer(cfg *config.Config) monitor.Analyzer {
	a, err := analyzer.New(analyzerConfig(cfg))
	if err != nil {
		slog.Warn("AI analysis disabled", "error", err)
		return nil
	}
	return a
}

// buildSources assembles the configured watchers. Missing files are
// skipped with a warning so one bad path does not sink the rest.
func buildSources(cfg *config.Config, patterns *pattern.Set) []watcher.Source {
	var sources []watcher.Source
	for _, path := range cfg.Monitor.Files {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			slog.Warn("skipping unreadable log file", "path", path, "error", err)
			continue
		}
		src := watcher.NewFileSource(path, patterns)
		sources = append(sources, watcher.Supervise(src, restartWait, maxRestarts))
	}
	if cfg.Monitor.System {
		sources = append(sources, watcher.NewSystemSource(
			cfg.Monitor.ScanInterval.Duration, cfg.Monitor.MetricThreshold, nil))
	}
	if cfg.Monitor.Kubernetes {
		k := cfg.Kubernetes
		src := watcher.NewKubectlSource(k.Namespace, k.Selector, k.TailLines,
			cfg.Monitor.ScanInterval.Duration, k.Timeout.Duration, patterns)
		sources = append(sources, watcher.Supervise(src, restartWait, maxRestarts))
	}
	return sources
}

// registerNotifiers wires ntfy and the digest batcher when configured.
// The returned digest needs Close on shutdown; nil when not enabled.
func registerNotifiers(cfg *config.Config, dispatcher *alert.Dispatcher) *reporter.Digest {
	a := cfg.Alerts

	var push alert.Observer
	if a.NtfyURL != "" && a.NtfyTopic != "" {
		push = reporter.NewNtfy(a.NtfyURL, a.NtfyTopic)
		if a.DedupWindow.Duration > 0 {
			push = alert.NewDeduper(push, a.DedupWindow.Duration, 0)
		}
		dispatcher.Register(push)
		slog.Info("ntfy notifications enabled", "topic", a.NtfyTopic)
	}

	if a.DigestInterval.Duration <= 0 {
		return nil
	}
	sink := push
	if sink == nil {
		sink = reporter.NewConsole(nil)
	}
	digest := reporter.NewDigest(sink, a.DigestInterval.Duration)
	dispatcher.Register(digest)
	slog.Info("alert digest enabled", "interval", a.DigestInterval.Duration)
	return digest
}

// --- utilities ---

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
