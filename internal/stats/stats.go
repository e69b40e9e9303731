// Package stats computes aggregate figures over a set of log entries.
package stats

import (
	"sort"
	"time"

	"github.com/nvoss/logvigil/internal/entry"
)

// topEndpointLimit caps how many endpoints a report carries.
const topEndpointLimit = 5

type Statistics struct {
	TotalEntries     int             `json:"total_entries"`
	Levels           map[string]int  `json:"levels"`
	Sources          map[string]int  `json:"sources"`
	ErrorCount       int             `json:"error_count"`
	WarningCount     int             `json:"warning_count"`
	CriticalCount    int             `json:"critical_count"`
	UniqueIPs        int             `json:"unique_ips"`
	UniqueUserAgents int             `json:"unique_user_agents"`
	StatusCodes      map[string]int  `json:"status_codes"`
	TopEndpoints     []EndpointCount `json:"top_endpoints"`
	TimeRange        TimeRange       `json:"time_range"`
}

type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Compute aggregates entries in a single pass. Access-log details (ip,
// user agent, status, path) come from the aux fields the loader sets;
// entries without them simply contribute nothing to those figures.
func Compute(entries []entry.Entry) Statistics {
	s := Statistics{
		TotalEntries: len(entries),
		Levels:       make(map[string]int),
		Sources:      make(map[string]int),
		StatusCodes:  make(map[string]int),
	}

	ips := make(map[string]bool)
	agents := make(map[string]bool)
	endpoints := make(map[string]int)

	for _, e := range entries {
		level := string(e.Level)
		if level == "" {
			level = "UNKNOWN"
		}
		s.Levels[level]++
		switch e.Level {
		case entry.LevelError:
			s.ErrorCount++
		case entry.LevelWarn:
			s.WarningCount++
		}
		if e.Critical {
			s.CriticalCount++
		}

		src := e.Field("service")
		if src == "" {
			src = e.Source
		}
		if src == "" {
			src = "UNKNOWN"
		}
		s.Sources[src]++

		if ip := e.Field("ip"); ip != "" {
			ips[ip] = true
		}
		if ua := e.Field("user_agent"); ua != "" {
			agents[ua] = true
		}
		if code := e.Field("status"); code != "" {
			s.StatusCodes[code]++
		}
		if path := e.Field("path"); path != "" {
			endpoints[path]++
		}

		if !e.Timestamp.IsZero() {
			if s.TimeRange.Start.IsZero() || e.Timestamp.Before(s.TimeRange.Start) {
				s.TimeRange.Start = e.Timestamp
			}
			if e.Timestamp.After(s.TimeRange.End) {
				s.TimeRange.End = e.Timestamp
			}
		}
	}

	s.UniqueIPs = len(ips)
	s.UniqueUserAgents = len(agents)
	s.TopEndpoints = topEndpoints(endpoints, topEndpointLimit)
	return s
}

// topEndpoints ranks by hit count, ties broken by path so output is
// stable.
func topEndpoints(counts map[string]int, n int) []EndpointCount {
	out := make([]EndpointCount, 0, len(counts))
	for path, count := range counts {
		out = append(out, EndpointCount{Endpoint: path, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Endpoint < out[j].Endpoint
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
