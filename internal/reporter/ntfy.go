// Package reporter implements the alert observers: console and
// structured-log writers, ntfy push, and the digest batcher.
package reporter

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nvoss/logvigil/internal/alert"
)

// Ntfy pushes alerts to an ntfy topic.
type Ntfy struct {
	url    string
	topic  string
	client *http.Client
}

// NewNtfy creates an ntfy observer for the given server URL and topic.
func NewNtfy(url, topic string) *Ntfy {
	return &Ntfy{
		url:   strings.TrimRight(url, "/"),
		topic: topic,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Notify implements alert.Observer.
func (n *Ntfy) Notify(a alert.Alert) error {
	if n.url == "" || n.topic == "" {
		slog.Debug("ntfy not configured, skipping notification")
		return nil
	}

	endpoint := n.url + "/" + n.topic
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(FormatBody(a)))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}

	req.Header.Set("Title", FormatTitle(a))
	req.Header.Set("Priority", PriorityFor(a.Kind))
	req.Header.Set("Tags", TagsFor(a.Kind))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	slog.Info("notification sent", "kind", a.Kind, "title", a.Title)
	return nil
}
