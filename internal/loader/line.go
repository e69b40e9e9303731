package loader

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/nvoss/logvigil/internal/entry"
)

// reAccess matches common and combined access log lines:
// IP ident user [ts] "METHOD path proto" status size ["referer" "agent"]
var reAccess = regexp.MustCompile(`^(\S+) \S+ \S+ \[([^\]]+)\] "(\S+) (\S+)(?: [^"]*)?" (\d{3}) (\S+)(?: "([^"]*)" "([^"]*)")?`)

// reLeveled matches "<timestamp> LEVEL message", with or without
// brackets around the level.
var reLeveled = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+\[?(\w+)\]?:?\s+(.+)$`)

// levelTokens decides whether a captured word really is a level. A line
// like "2024-01-15 10:30:45 Started worker" must not lose "Started" to
// the level slot.
var levelTokens = map[string]entry.Level{
	"TRACE":    entry.LevelInfo,
	"DEBUG":    entry.LevelInfo,
	"INFO":     entry.LevelInfo,
	"NOTICE":   entry.LevelInfo,
	"WARN":     entry.LevelWarn,
	"WARNING":  entry.LevelWarn,
	"ERR":      entry.LevelError,
	"ERROR":    entry.LevelError,
	"FATAL":    entry.LevelError,
	"CRITICAL": entry.LevelError,
	"SEVERE":   entry.LevelError,
	"PANIC":    entry.LevelError,
}

func (l *Loader) loadText(r io.Reader) ([]entry.Entry, error) {
	var entries []entry.Entry
	scanner := bufio.NewScanner(r)
	// Real logs carry the occasional very long line.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, parseLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseLine cascades from the most to the least structured format.
func parseLine(line string) entry.Entry {
	if m := reAccess.FindStringSubmatch(line); m != nil {
		return accessLogEntry(m, line)
	}

	if m := reLeveled.FindStringSubmatch(line); m != nil {
		if lvl, ok := levelTokens[strings.ToUpper(m[2])]; ok {
			return entry.Entry{
				Timestamp: parseTimestamp(m[1]),
				Level:     lvl,
				Message:   m[3],
			}
		}
	}

	return entry.Entry{Level: inferLevel(line), Message: line}
}

func accessLogEntry(m []string, line string) entry.Entry {
	e := entry.Entry{
		Timestamp: parseTimestamp(m[2]),
		Message:   line,
		Fields: map[string]string{
			"ip":     m[1],
			"method": m[3],
			"path":   m[4],
			"status": m[5],
		},
	}
	if m[6] != "" && m[6] != "-" {
		e.Fields["size"] = m[6]
	}
	if m[8] != "" {
		e.Fields["user_agent"] = m[8]
	}

	switch m[5][0] {
	case '5':
		e.Level = entry.LevelError
	case '4':
		e.Level = entry.LevelWarn
	default:
		e.Level = entry.LevelInfo
	}
	return e
}

func inferLevel(line string) entry.Level {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "fail"):
		return entry.LevelError
	case strings.Contains(lower, "warn"):
		return entry.LevelWarn
	default:
		return entry.LevelInfo
	}
}
