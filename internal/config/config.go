// Package config handles TOML configuration loading with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for logvigil.
type Config struct {
	Monitor    MonitorConfig    `toml:"monitor"`
	Kubernetes KubernetesConfig `toml:"kubernetes"`
	Analyzer   AnalyzerConfig   `toml:"analyzer"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Server     ServerConfig     `toml:"server"`
	Store      StoreConfig      `toml:"store"`
	Log        LogConfig        `toml:"log"`
}

// MonitorConfig controls the monitoring engine.
type MonitorConfig struct {
	Files           []string `toml:"files"`
	System          bool     `toml:"system"`
	Kubernetes      bool     `toml:"kubernetes"`
	Scenario        string   `toml:"scenario"`
	Patterns        []string `toml:"patterns"`
	ScanInterval    Duration `toml:"scan_interval"`
	DrainMax        int      `toml:"drain_max"`
	AlertThreshold  int      `toml:"alert_threshold"`
	BufferSize      int      `toml:"buffer_size"`
	MetricThreshold float64  `toml:"metric_threshold"`
}

// KubernetesConfig controls the kubectl log puller.
type KubernetesConfig struct {
	Namespace string   `toml:"namespace"`
	Selector  string   `toml:"selector"`
	TailLines int      `toml:"tail_lines"`
	Timeout   Duration `toml:"timeout"`
}

// AnalyzerConfig controls the AI analysis collaborator. The API key is
// never stored in the file, only the name of the env var holding it.
type AnalyzerConfig struct {
	Model      string   `toml:"model"`
	KeyEnv     string   `toml:"key_env"`
	Timeout    Duration `toml:"timeout"`
	MaxEntries int      `toml:"max_entries"`
}

// AlertsConfig controls outbound notification channels. Everything here
// is optional; the console observer works without configuration.
type AlertsConfig struct {
	NtfyURL        string   `toml:"ntfy_url"`
	NtfyTopic      string   `toml:"ntfy_topic"`
	DedupWindow    Duration `toml:"dedup_window"`
	DigestInterval Duration `toml:"digest_interval"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	UploadDir   string `toml:"upload_dir"`
	MaxUploadMB int64  `toml:"max_upload_mb"`
}

// StoreConfig controls report persistence.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps time.Duration for TOML string parsing (e.g. "30s", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Monitor: MonitorConfig{
			ScanInterval:    Duration{30 * time.Second},
			DrainMax:        100,
			AlertThreshold:  5,
			BufferSize:      1000,
			MetricThreshold: 90,
		},
		Kubernetes: KubernetesConfig{
			TailLines: 10,
			Timeout:   Duration{30 * time.Second},
		},
		Analyzer: AnalyzerConfig{
			Model:      "gpt-4o-mini",
			KeyEnv:     "OPENAI_API_KEY",
			Timeout:    Duration{60 * time.Second},
			MaxEntries: 100,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			UploadDir:   filepath.Join(dataDir, "uploads"),
			MaxUploadMB: 50,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "reports.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = "."
	}
	return filepath.Join(cacheDir, "logvigil")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "logvigil", "config.toml")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Monitor.ScanInterval.Duration <= 0 {
		return fmt.Errorf("monitor.scan_interval must be positive")
	}
	if c.Monitor.DrainMax < 1 {
		return fmt.Errorf("monitor.drain_max must be at least 1")
	}
	if c.Monitor.AlertThreshold < 1 {
		return fmt.Errorf("monitor.alert_threshold must be at least 1")
	}
	if c.Monitor.BufferSize < 1 {
		return fmt.Errorf("monitor.buffer_size must be at least 1")
	}
	if c.Monitor.MetricThreshold <= 0 || c.Monitor.MetricThreshold > 100 {
		return fmt.Errorf("monitor.metric_threshold must be in (0, 100]")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}
