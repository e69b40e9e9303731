package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nvoss/logvigil/internal/pattern"
)

// defaultPoll bounds how long a quiet file goes unchecked when
// notifications are missed or unavailable.
const defaultPoll = time.Second

// FileSource follows appended content of one log file, tail -f style. It
// waits for a file that does not exist yet, survives rotation and
// truncation, and emits complete lines only.
type FileSource struct {
	path     string
	patterns *pattern.Set
	poll     time.Duration
}

// NewFileSource creates a file source for path. Lines are classified
// against patterns.
func NewFileSource(path string, patterns *pattern.Set) *FileSource {
	return &FileSource{path: path, patterns: patterns, poll: defaultPoll}
}

// Name implements Source.
func (f *FileSource) Name() string { return "file:" + f.path }

// Run implements Source. An existing file is followed from its current
// end; one created later is read from the start.
func (f *FileSource) Run(ctx context.Context, sink Sink) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	// Rotations surface as create/rename events on the directory, not on
	// the file itself.
	dir := filepath.Dir(f.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	t := newTail(f.path)
	defer t.Close()

	if t.Open(io.SeekEnd) {
		slog.Info("following log file", "path", f.path)
	} else {
		slog.Info("log file absent, waiting for it", "path", f.path)
	}

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	emit := func(line string) { sink(lineEntry(line, f.Name(), f.patterns)) }

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file notification error", "path", f.path, "error", err)
			continue
		case <-ticker.C:
		}

		if err := t.Drain(emit); err != nil {
			slog.Warn("reading log file", "path", f.path, "error", err)
		}
	}
}

// tail tracks the read position in one file across rotation and
// truncation.
type tail struct {
	path    string
	f       *os.File
	r       *bufio.Reader
	pending string
	size    int64
}

func newTail(path string) *tail {
	return &tail{path: path}
}

// Open opens the file if it exists and reports success. io.SeekEnd
// follows from the current end, io.SeekStart reads from the beginning.
func (t *tail) Open(whence int) bool {
	f, err := os.Open(t.path)
	if err != nil {
		return false
	}

	var size int64
	if whence == io.SeekEnd {
		if fi, err := f.Stat(); err == nil {
			size = fi.Size()
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return false
		}
	}

	t.f = f
	t.r = bufio.NewReader(f)
	t.pending = ""
	t.size = size
	return true
}

// Drain reads complete lines appended since the last call and hands them
// to emit. It reopens after rotation, rewinds after truncation, and
// treats a missing file as "keep waiting", not an error.
func (t *tail) Drain(emit func(string)) error {
	fi, err := os.Stat(t.path)
	if err != nil {
		if t.f != nil {
			slog.Info("log file disappeared, waiting for it", "path", t.path)
			t.Close()
		}
		return nil
	}

	switch {
	case t.f == nil:
		if !t.Open(io.SeekStart) {
			return nil
		}
	case t.rotated(fi):
		slog.Info("log file rotated, reopening", "path", t.path)
		t.Close()
		if !t.Open(io.SeekStart) {
			return nil
		}
	case fi.Size() < t.size:
		slog.Info("log file truncated, rewinding", "path", t.path)
		if _, err := t.f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewinding %s: %w", t.path, err)
		}
		t.r.Reset(t.f)
		t.pending = ""
	}
	t.size = fi.Size()

	for {
		chunk, err := t.r.ReadString('\n')
		if err == nil {
			line := strings.TrimRight(t.pending+chunk, "\r\n")
			t.pending = ""
			if line != "" {
				emit(line)
			}
			continue
		}
		// Hold an incomplete trailing line until its newline arrives.
		t.pending += chunk
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

// rotated reports whether the name now points at a different file than
// the open handle.
func (t *tail) rotated(fi os.FileInfo) bool {
	cur, err := t.f.Stat()
	if err != nil {
		return true
	}
	return !os.SameFile(fi, cur)
}

// Close releases the file handle. Safe to call repeatedly.
func (t *tail) Close() {
	if t.f != nil {
		t.f.Close()
		t.f = nil
		t.r = nil
		t.pending = ""
		t.size = 0
	}
}
