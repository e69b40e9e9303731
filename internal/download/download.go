// Package download fetches public sample log datasets so the analysis
// pipeline can be exercised without production data.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const requestTimeout = 30 * time.Second

// ErrUnknownSource is returned by Download for a name not in the
// registry.
var ErrUnknownSource = errors.New("unknown source")

// sources maps dataset names to their public locations. An empty URL
// marks a dataset that is generated locally.
var sources = map[string]string{
	"github_logs":        "https://raw.githubusercontent.com/logpai/loghub/master/Apache/Apache_2k.log",
	"sample_json_logs":   "https://raw.githubusercontent.com/logpai/loghub/master/JSON/nginx_logs.json",
	"elasticsearch_logs": "https://raw.githubusercontent.com/elastic/examples/master/Common%20Data%20Formats/nginx_logs/nginx_logs",
	"web_server_logs":    "https://raw.githubusercontent.com/logpai/loghub/master/Nginx/Nginx_2k.log",
	"hadoop_logs":        "https://raw.githubusercontent.com/logpai/loghub/master/Hadoop/Hadoop_2k.log",
	"spark_logs":         "https://raw.githubusercontent.com/logpai/loghub/master/Spark/Spark_2k.log",
	"zookeeper_logs":     "https://raw.githubusercontent.com/logpai/loghub/master/Zookeeper/Zookeeper_2k.log",
	"hpc_logs":           "https://raw.githubusercontent.com/logpai/loghub/master/HPC/HPC_2k.log",
	"nginx":              "",
}

// Client downloads datasets into local files.
type Client struct {
	http    *http.Client
	sources map[string]string
}

func New() *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		sources: sources,
	}
}

// Sources returns the known dataset names, sorted.
func (c *Client) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry returns a copy of the name to URL mapping. Locally generated
// datasets have an empty URL.
func (c *Client) Registry() map[string]string {
	reg := make(map[string]string, len(c.sources))
	for name, url := range c.sources {
		reg[name] = url
	}
	return reg
}

// Download fetches the named dataset into destDir/<name>.log and returns
// the file path and its size. One attempt, no retries.
func (c *Client) Download(ctx context.Context, name, destDir string) (string, int64, error) {
	url, ok := c.sources[name]
	if !ok {
		return "", 0, fmt.Errorf("%w %q, run the sources command for the list", ErrUnknownSource, name)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("creating download directory: %w", err)
	}
	dest := filepath.Join(destDir, name+".log")

	if url == "" {
		data := nginxSample()
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return "", 0, fmt.Errorf("writing sample log: %w", err)
		}
		slog.Info("generated sample log", "source", name, "path", dest, "bytes", len(data))
		return dest, int64(len(data)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("downloading %s: server returned status %d", name, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", dest, err)
	}
	size, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(dest)
		return "", 0, fmt.Errorf("saving %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("saving %s: %w", name, err)
	}

	slog.Info("downloaded log dataset", "source", name, "path", dest, "bytes", size)
	return dest, size, nil
}
