// Package entry defines the normalized log record shared by the watchers,
// the buffer, the loader, and the analysis pipeline.
package entry

import (
	"strings"
	"time"
)

// Level indicates the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel maps common level spellings onto the three supported levels.
// Unrecognized values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR", "ERR", "FATAL", "CRITICAL", "CRIT", "SEVERE", "PANIC":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	default:
		return LevelInfo
	}
}

// Entry is one normalized log record. Watchers create entries from raw
// lines or metric samples, the loader creates them from files. An entry is
// immutable after creation.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Source    string
	Critical  bool

	// Fields holds source-specific auxiliary data (ip, method, path,
	// status, size, user_agent). Nil for entries that have none.
	Fields map[string]string
}

// New creates an entry stamped with the current time.
func New(level Level, message, source string, critical bool) Entry {
	return Entry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Source:    source,
		Critical:  critical,
	}
}

// FromLine normalizes one raw line from the named source. Matched lines
// are errors, everything else is informational.
func FromLine(line, source string, critical bool) Entry {
	lvl := LevelInfo
	if critical {
		lvl = LevelError
	}
	return New(lvl, line, source, critical)
}

// Field returns the named auxiliary field, or "" when absent.
func (e Entry) Field(key string) string {
	if e.Fields == nil {
		return ""
	}
	return e.Fields[key]
}
