// Package loader reads log files in the formats the tool accepts (json,
// log, txt, csv) and normalizes them into entries.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvoss/logvigil/internal/entry"
	"github.com/nvoss/logvigil/internal/pattern"
)

// extensions lists the accepted file types, shared with the upload
// endpoint.
var extensions = map[string]bool{
	"json": true,
	"log":  true,
	"txt":  true,
	"csv":  true,
}

// Supported reports whether the file name carries an accepted
// extension.
func Supported(name string) bool {
	return extensions[extOf(name)]
}

func extOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

type Loader struct {
	patterns *pattern.Set
}

// New creates a loader. Every loaded entry gets its critical flag from
// patterns, so offline analysis sees the same criticality as the
// monitor.
func New(patterns *pattern.Set) *Loader {
	return &Loader{patterns: patterns}
}

// Load parses the file according to its extension. It returns an error
// for unsupported types and for files yielding no entries.
func (l *Loader) Load(path string) ([]entry.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	var entries []entry.Entry
	switch ext := extOf(path); ext {
	case "json":
		entries, err = l.loadJSON(f)
	case "log", "txt":
		entries, err = l.loadText(f)
	case "csv":
		entries, err = l.loadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q (accepted: json, log, txt, csv)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no log entries found in %s", filepath.Base(path))
	}

	for i := range entries {
		entries[i].Source = filepath.Base(path)
		entries[i].Critical = l.patterns.Match(entries[i].Message)
	}

	slog.Info("loaded log file", "path", path, "entries", len(entries))
	return entries, nil
}

// loadJSON accepts either a JSON array of objects or JSON lines.
// Invalid lines in JSON-lines input are skipped with a warning, the way
// a partially corrupt log should be.
func (l *Loader) loadJSON(r io.Reader) ([]entry.Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("file is empty")
	}

	if strings.HasPrefix(text, "[") {
		var objects []map[string]any
		if err := json.Unmarshal([]byte(text), &objects); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		entries := make([]entry.Entry, 0, len(objects))
		for _, obj := range objects {
			entries = append(entries, entryFromObject(obj))
		}
		return entries, nil
	}

	var entries []entry.Entry
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			slog.Warn("skipping invalid JSON line", "line", i+1, "error", err)
			continue
		}
		entries = append(entries, entryFromObject(obj))
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no valid JSON entries")
	}
	return entries, nil
}

// Aux field keys are normalized so statistics find them regardless of
// the producer's naming.
var fieldAliases = map[string]string{
	"ip_address":   "ip",
	"remote_ip":    "ip",
	"client_ip":    "ip",
	"user-agent":   "user_agent",
	"status_code":  "status",
	"response":     "status",
	"request_path": "path",
	"endpoint":     "path",
}

func entryFromObject(obj map[string]any) entry.Entry {
	var e entry.Entry
	e.Level = entry.LevelInfo

	for key, value := range obj {
		switch strings.ToLower(key) {
		case "timestamp", "time", "ts", "@timestamp":
			if s, ok := value.(string); ok && e.Timestamp.IsZero() {
				e.Timestamp = parseTimestamp(s)
			}
		case "level", "severity", "lvl":
			if s, ok := value.(string); ok {
				e.Level = entry.ParseLevel(s)
			}
		case "message", "msg", "log", "text":
			if s, ok := value.(string); ok && e.Message == "" {
				e.Message = s
			}
		default:
			if e.Fields == nil {
				e.Fields = make(map[string]string)
			}
			name := strings.ToLower(key)
			if alias, ok := fieldAliases[name]; ok {
				name = alias
			}
			e.Fields[name] = stringify(value)
		}
	}

	if e.Message == "" {
		if req := e.Field("request"); req != "" {
			e.Message = "HTTP request: " + req
		} else if ip := e.Field("ip"); ip != "" {
			e.Message = "Request from " + ip
		} else {
			e.Message = "Log entry"
		}
	}
	return e
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

// loadCSV expects a header row; timestamp/level/message columns map to
// the entry, anything else becomes an aux field.
func (l *Loader) loadCSV(r io.Reader) ([]entry.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var entries []entry.Entry
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV record: %w", err)
		}

		var e entry.Entry
		e.Level = entry.LevelInfo
		for i, value := range record {
			if i >= len(header) {
				break
			}
			switch header[i] {
			case "timestamp", "time", "ts":
				e.Timestamp = parseTimestamp(value)
			case "level", "severity":
				e.Level = entry.ParseLevel(value)
			case "message", "msg":
				e.Message = value
			default:
				if e.Fields == nil {
					e.Fields = make(map[string]string)
				}
				name := header[i]
				if alias, ok := fieldAliases[name]; ok {
					name = alias
				}
				e.Fields[name] = value
			}
		}
		if e.Message == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// timestampLayouts covers the formats seen in the wild across the
// sample datasets. Unparseable values stay at the zero time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/Jan/2006:15:04:05 -0700",
	"02/Jan/2006:15:04:05",
	"Jan 02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
