package reporter

import (
	"fmt"
	"strings"

	"github.com/nvoss/logvigil/internal/alert"
	"github.com/nvoss/logvigil/internal/format"
)

// bodyLimit caps the rendered log line in outbound notifications. The
// alert itself keeps the full entry.
const bodyLimit = 100

// kindEmoji maps alert kinds to display emojis for notification titles.
var kindEmoji = map[alert.Kind]string{
	alert.KindCritical: "\U0001f6a8", // rotating light
	alert.KindAnalysis: "\U0001f4ca", // bar chart
}

// kindTags maps alert kinds to ntfy tag names.
var kindTags = map[alert.Kind]string{
	alert.KindCritical: "rotating_light,warning",
	alert.KindAnalysis: "bar_chart,robot",
}

// kindPriority maps alert kinds to ntfy priority strings.
var kindPriority = map[alert.Kind]string{
	alert.KindCritical: "urgent",
	alert.KindAnalysis: "default",
}

// FormatTitle builds the notification title for an alert.
func FormatTitle(a alert.Alert) string {
	emoji := kindEmoji[a.Kind]
	if emoji == "" {
		emoji = "❗" // exclamation mark
	}
	return fmt.Sprintf("%s %s", emoji, a.Title)
}

// FormatBody builds the notification body. Critical alerts render the
// offending entry with its line cut to bodyLimit characters; analysis
// alerts carry the full analysis text.
func FormatBody(a alert.Alert) string {
	if a.Kind != alert.KindCritical || a.Entry == nil {
		return a.Analysis
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", a.Entry.Source)
	fmt.Fprintf(&b, "Level: %s\n", a.Entry.Level)
	if !a.Entry.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Time: %s\n", a.Entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteString("\n")
	b.WriteString(format.Excerpt(a.Entry.Message, bodyLimit))
	return b.String()
}

// TagsFor returns the ntfy tags string for an alert kind.
func TagsFor(kind alert.Kind) string {
	if tags, ok := kindTags[kind]; ok {
		return tags
	}
	return "warning"
}

// PriorityFor returns the ntfy priority string for an alert kind.
func PriorityFor(kind alert.Kind) string {
	if p, ok := kindPriority[kind]; ok {
		return p
	}
	return "default"
}
