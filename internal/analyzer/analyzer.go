// Package analyzer summarizes log batches through an LLM. A missing API
// key fails construction; everything after startup degrades to "no
// analysis this cycle".
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"

	"github.com/nvoss/logvigil/internal/entry"
)

const (
	DefaultModel      = "gpt-4o-mini"
	DefaultKeyEnv     = "OPENAI_API_KEY"
	DefaultTimeout    = 60 * time.Second
	DefaultMaxEntries = 100
)

// Config tunes the analyzer. Zero values mean defaults.
type Config struct {
	Model      string
	KeyEnv     string
	Timeout    time.Duration
	MaxEntries int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.KeyEnv == "" {
		c.KeyEnv = DefaultKeyEnv
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	return c
}

type Analyzer struct {
	llm        llms.Model
	timeout    time.Duration
	maxEntries int
}

// New builds the LLM client. The API key comes from the configured
// environment variable; its absence is the only fatal analyzer error.
func New(cfg Config) (*Analyzer, error) {
	cfg = cfg.withDefaults()

	key := os.Getenv(cfg.KeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key: set %s", cfg.KeyEnv)
	}

	llm, err := openai.New(openai.WithToken(key), openai.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	return &Analyzer{
		llm:        llm,
		timeout:    cfg.Timeout,
		maxEntries: cfg.MaxEntries,
	}, nil
}

var analysisTemplate = prompts.NewPromptTemplate(`You are a site reliability analyst. Analyze these logs and provide a CONCISE summary.

LOG SUMMARY:
- Total entries: {{.total}}
- Errors: {{.errors}}
- Warnings: {{.warnings}}
- Sources: {{.sources}}

LOG DATA:
{{.entries}}

Provide a BRIEF analysis in this exact format:

## QUICK OVERVIEW
[2-3 sentences summarizing the overall situation]

## CRITICAL ISSUES
- [List only critical security/performance issues, max 3 items]

## WARNINGS
- [List important warnings, max 3 items]

## KEY METRICS
- [2-3 key performance metrics]

## IMMEDIATE ACTIONS
- [2-3 specific, actionable steps]

Keep each section brief and actionable. Use bullet points. Focus on the most important findings only.`,
	[]string{"total", "errors", "warnings", "sources", "entries"})

// promptEntry is the projection of an Entry rendered into the prompt.
type promptEntry struct {
	Timestamp string `json:"timestamp,omitempty"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Source    string `json:"source,omitempty"`
}

// Analyze renders at most maxEntries of the newest entries into the
// prompt and returns the model's text. An empty batch yields no call
// and no text.
func (a *Analyzer) Analyze(ctx context.Context, entries []entry.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if len(entries) > a.maxEntries {
		entries = entries[len(entries)-a.maxEntries:]
	}

	prompt, err := buildPrompt(entries)
	if err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func buildPrompt(entries []entry.Entry) (string, error) {
	var errors, warnings int
	sources := make(map[string]bool)
	projected := make([]promptEntry, 0, len(entries))

	for _, e := range entries {
		switch e.Level {
		case entry.LevelError:
			errors++
		case entry.LevelWarn:
			warnings++
		}
		if e.Source != "" {
			sources[e.Source] = true
		}

		p := promptEntry{
			Level:   string(e.Level),
			Message: e.Message,
			Source:  e.Source,
		}
		if !e.Timestamp.IsZero() {
			p.Timestamp = e.Timestamp.Format(time.RFC3339)
		}
		projected = append(projected, p)
	}

	data, err := json.MarshalIndent(projected, "", "  ")
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	sort.Strings(names)

	return analysisTemplate.Format(map[string]any{
		"total":    len(entries),
		"errors":   errors,
		"warnings": warnings,
		"sources":  strings.Join(names, ", "),
		"entries":  string(data),
	})
}

// classify rewrites an API failure so the log line names the likely
// cause.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return fmt.Errorf("authentication failed, check the API key: %w", err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429"):
		return fmt.Errorf("rate limited by the model API: %w", err)
	case strings.Contains(msg, "model") || strings.Contains(msg, "404"):
		return fmt.Errorf("model unavailable: %w", err)
	default:
		return fmt.Errorf("model call failed: %w", err)
	}
}
