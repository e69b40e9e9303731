package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nvoss/logvigil/internal/pattern"
)

// runner executes one external command and returns its stdout. Split out
// so tests can substitute a fake.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// runCommand executes a command and returns its stdout. The caller's
// context carries the timeout.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %v: %w (stderr: %s)", name, args, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// KubectlSource pulls recent container logs through the kubectl binary on
// an interval. If kubectl is not installed, the source logs once and
// finishes; the rest of the monitor keeps running.
type KubectlSource struct {
	namespace string
	selector  string
	tailLines int
	interval  time.Duration
	timeout   time.Duration
	patterns  *pattern.Set
	run       runner
}

// NewKubectlSource creates a kubernetes log source. namespace and
// selector may be empty, in which case kubectl's defaults apply.
func NewKubectlSource(namespace, selector string, tailLines int, interval, timeout time.Duration, patterns *pattern.Set) *KubectlSource {
	if tailLines <= 0 {
		tailLines = 10
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KubectlSource{
		namespace: namespace,
		selector:  selector,
		tailLines: tailLines,
		interval:  interval,
		timeout:   timeout,
		patterns:  patterns,
		run:       runCommand,
	}
}

// Name implements Source.
func (k *KubectlSource) Name() string { return "kubernetes" }

// Run implements Source. The first pull happens immediately, then once
// per interval.
func (k *KubectlSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		if err := k.pull(ctx, sink); err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				slog.Warn("kubectl not found, skipping kubernetes monitoring")
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("kubernetes log fetch timed out", "timeout", k.timeout)
			} else if ctx.Err() == nil {
				slog.Error("fetching kubernetes logs", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// pull fetches the last tailLines of every container's log and feeds each
// line through the sink.
func (k *KubectlSource) pull(ctx context.Context, sink Sink) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	args := []string{"logs", "--tail=" + strconv.Itoa(k.tailLines), "--all-containers=true"}
	if k.selector != "" {
		args = append(args, "-l", k.selector)
	}
	if k.namespace != "" {
		args = append(args, "-n", k.namespace)
	}

	out, err := k.run(ctx, "kubectl", args...)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sink(lineEntry(line, k.Name(), k.patterns))
	}
	return nil
}
