package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Monitor.ScanInterval.Duration != 30*time.Second {
		t.Errorf("default scan_interval = %v, want 30s", cfg.Monitor.ScanInterval.Duration)
	}
	if cfg.Monitor.DrainMax != 100 {
		t.Errorf("default drain_max = %d, want 100", cfg.Monitor.DrainMax)
	}
	if cfg.Monitor.AlertThreshold != 5 {
		t.Errorf("default alert_threshold = %d, want 5", cfg.Monitor.AlertThreshold)
	}
	if cfg.Monitor.BufferSize != 1000 {
		t.Errorf("default buffer_size = %d, want 1000", cfg.Monitor.BufferSize)
	}
	if cfg.Monitor.MetricThreshold != 90 {
		t.Errorf("default metric_threshold = %v, want 90", cfg.Monitor.MetricThreshold)
	}
	if cfg.Kubernetes.TailLines != 10 {
		t.Errorf("default tail_lines = %d, want 10", cfg.Kubernetes.TailLines)
	}
	if cfg.Analyzer.Model != "gpt-4o-mini" {
		t.Errorf("default model = %q", cfg.Analyzer.Model)
	}
	if cfg.Analyzer.KeyEnv != "OPENAI_API_KEY" {
		t.Errorf("default key_env = %q", cfg.Analyzer.KeyEnv)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxUploadMB != 50 {
		t.Errorf("default max_upload_mb = %d, want 50", cfg.Server.MaxUploadMB)
	}
	if cfg.Store.Path == "" {
		t.Error("default store path should not be empty")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("loading nonexistent config should return defaults, got error: %v", err)
	}
	if cfg.Monitor.ScanInterval.Duration != 30*time.Second {
		t.Errorf("scan_interval = %v, want default 30s", cfg.Monitor.ScanInterval.Duration)
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[monitor]
files = ["/var/log/app.log", "/var/log/db.log"]
system = true
scenario = "production"
scan_interval = "10s"
alert_threshold = 3

[kubernetes]
namespace = "staging"
selector = "app=web"
tail_lines = 25

[analyzer]
model = "gpt-4o"
timeout = "90s"

[alerts]
ntfy_url = "https://ntfy.sh"
ntfy_topic = "logvigil-alerts"
dedup_window = "5m"

[server]
addr = ":9090"

[store]
path = "/tmp/logvigil/reports.db"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if len(cfg.Monitor.Files) != 2 {
		t.Errorf("monitor.files count = %d, want 2", len(cfg.Monitor.Files))
	}
	if !cfg.Monitor.System {
		t.Error("monitor.system should be true")
	}
	if cfg.Monitor.Scenario != "production" {
		t.Errorf("monitor.scenario = %q", cfg.Monitor.Scenario)
	}
	if cfg.Monitor.ScanInterval.Duration != 10*time.Second {
		t.Errorf("monitor.scan_interval = %v, want 10s", cfg.Monitor.ScanInterval.Duration)
	}
	if cfg.Monitor.AlertThreshold != 3 {
		t.Errorf("monitor.alert_threshold = %d, want 3", cfg.Monitor.AlertThreshold)
	}
	// Unset values keep their defaults.
	if cfg.Monitor.DrainMax != 100 {
		t.Errorf("monitor.drain_max = %d, want default 100", cfg.Monitor.DrainMax)
	}
	if cfg.Kubernetes.Namespace != "staging" || cfg.Kubernetes.Selector != "app=web" {
		t.Errorf("kubernetes = %q/%q", cfg.Kubernetes.Namespace, cfg.Kubernetes.Selector)
	}
	if cfg.Kubernetes.TailLines != 25 {
		t.Errorf("kubernetes.tail_lines = %d, want 25", cfg.Kubernetes.TailLines)
	}
	if cfg.Analyzer.Model != "gpt-4o" {
		t.Errorf("analyzer.model = %q", cfg.Analyzer.Model)
	}
	if cfg.Analyzer.Timeout.Duration != 90*time.Second {
		t.Errorf("analyzer.timeout = %v, want 90s", cfg.Analyzer.Timeout.Duration)
	}
	if cfg.Alerts.NtfyTopic != "logvigil-alerts" {
		t.Errorf("alerts.ntfy_topic = %q", cfg.Alerts.NtfyTopic)
	}
	if cfg.Alerts.DedupWindow.Duration != 5*time.Minute {
		t.Errorf("alerts.dedup_window = %v, want 5m", cfg.Alerts.DedupWindow.Duration)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.Path != "/tmp/logvigil/reports.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("not valid [[[ toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "zero scan interval",
			content: "[monitor]\nscan_interval = \"0s\"\n",
			wantMsg: "scan_interval",
		},
		{
			name:    "negative threshold",
			content: "[monitor]\nalert_threshold = -1\n",
			wantMsg: "alert_threshold",
		},
		{
			name:    "metric threshold over 100",
			content: "[monitor]\nmetric_threshold = 150\n",
			wantMsg: "metric_threshold",
		},
		{
			name:    "bad log level",
			content: "[log]\nlevel = \"loud\"\n",
			wantMsg: "log.level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error = %v, want it to mention %s", err, tc.wantMsg)
			}
		})
	}
}
