// Package alert defines the alert model and the observer fan-out that
// delivers alerts to registered sinks.
package alert

import (
	"time"

	"github.com/nvoss/logvigil/internal/entry"
)

// Kind distinguishes immediate critical alerts from periodic analysis
// updates.
type Kind string

const (
	KindCritical Kind = "critical"
	KindAnalysis Kind = "analysis"
)

// Alert is one notification event. Critical alerts carry the entry that
// tripped a pattern; analysis alerts carry the analyzer's text. Alerts
// are ephemeral: delivered synchronously to each observer, then
// discarded. No queue, no retry.
type Alert struct {
	Timestamp time.Time
	Kind      Kind
	Title     string
	Entry     *entry.Entry // set for KindCritical
	Analysis  string       // set for KindAnalysis
}

// Body returns the alert's display text: the entry message for critical
// alerts, the analysis text otherwise.
func (a Alert) Body() string {
	if a.Entry != nil {
		return a.Entry.Message
	}
	return a.Analysis
}

// Source returns the origin tag of a critical alert, or "" for analysis
// alerts.
func (a Alert) Source() string {
	if a.Entry != nil {
		return a.Entry.Source
	}
	return ""
}
