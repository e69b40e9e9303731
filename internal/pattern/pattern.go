// Package pattern decides whether a log line signals a critical condition
// using case-insensitive substring matching.
package pattern

import (
	"log/slog"
	"sort"
	"strings"
)

// Set is an ordered collection of lowercase substrings. A line is critical
// when any one of them occurs in it. Sets are assembled at configuration
// time and read-only during monitoring.
type Set struct {
	patterns []string
}

// New builds a set from the given patterns, normalized to lowercase.
// Blanks and duplicates are dropped; first-appearance order is kept.
func New(patterns ...string) *Set {
	s := &Set{}
	s.Add(patterns...)
	return s
}

// Default returns the generic failure vocabulary.
func Default() *Set {
	return New(defaultPatterns...)
}

// ForScenario returns the default set extended with the named scenario's
// vocabulary. An unknown name falls back to the plain default set.
func ForScenario(name string) *Set {
	s := Default()
	ext, ok := scenarioPatterns[name]
	if !ok {
		if name != "" {
			slog.Warn("unknown monitoring scenario, using default patterns", "scenario", name)
		}
		return s
	}
	s.Add(ext...)
	return s
}

// Scenarios lists the known scenario names, sorted.
func Scenarios() []string {
	names := make([]string, 0, len(scenarioPatterns))
	for name := range scenarioPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add appends patterns not already present. Call before monitoring starts;
// the set is not synchronized.
func (s *Set) Add(patterns ...string) {
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || s.has(p) {
			continue
		}
		s.patterns = append(s.patterns, p)
	}
}

func (s *Set) has(p string) bool {
	for _, q := range s.patterns {
		if q == p {
			return true
		}
	}
	return false
}

// Match reports whether line contains any pattern. The empty line never
// matches.
func (s *Set) Match(line string) bool {
	if line == "" {
		return false
	}
	lower := strings.ToLower(line)
	for _, p := range s.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int {
	return len(s.patterns)
}

// Patterns returns a copy of the patterns in match order.
func (s *Set) Patterns() []string {
	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}
