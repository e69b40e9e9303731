package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/nvoss/logvigil/internal/entry"
	"github.com/nvoss/logvigil/internal/loader"
	"github.com/nvoss/logvigil/internal/pattern"
)

func TestDownloadFetchesToFile(t *testing.T) {
	const body = "line one\nline two\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := &Client{http: srv.Client(), sources: map[string]string{"demo": srv.URL}}

	dir := t.TempDir()
	path, size, err := c.Download(context.Background(), "demo", dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := filepath.Base(path); got != "demo.log" {
		t.Errorf("file name = %q, want %q", got, "demo.log")
	}
	if size != int64(len(body)) {
		t.Errorf("size = %d, want %d", size, len(body))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != body {
		t.Errorf("file content = %q, want %q", data, body)
	}
}

func TestDownloadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &Client{http: srv.Client(), sources: map[string]string{"demo": srv.URL}}

	dir := t.TempDir()
	_, _, err := c.Download(context.Background(), "demo", dir)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error = %v, want it to mention the status", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "demo.log")); err == nil {
		t.Error("no file should be written on a failed download")
	}
}

func TestDownloadUnknownSource(t *testing.T) {
	_, _, err := New().Download(context.Background(), "no_such_dataset", t.TempDir())
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("error = %v, want ErrUnknownSource", err)
	}
	if err == nil || !strings.Contains(err.Error(), "no_such_dataset") {
		t.Errorf("error = %v, want it to name the source", err)
	}
}

func TestSourcesSorted(t *testing.T) {
	got := New().Sources()
	if len(got) != len(sources) {
		t.Fatalf("got %d sources, want %d", len(got), len(sources))
	}
	if !sort.StringsAreSorted(got) {
		t.Errorf("sources not sorted: %v", got)
	}
	found := false
	for _, name := range got {
		if name == "nginx" {
			found = true
		}
	}
	if !found {
		t.Error("nginx sample missing from the source list")
	}
}

func TestRegistryIsACopy(t *testing.T) {
	c := New()
	reg := c.Registry()
	if len(reg) != len(sources) {
		t.Fatalf("got %d registry entries, want %d", len(reg), len(sources))
	}
	if !strings.Contains(reg["hadoop_logs"], "loghub") {
		t.Errorf("hadoop_logs URL = %q, want a loghub URL", reg["hadoop_logs"])
	}

	reg["hadoop_logs"] = "mutated"
	if c.Registry()["hadoop_logs"] == "mutated" {
		t.Error("mutating the returned registry changed the client's copy")
	}
}

func TestNginxSampleLoads(t *testing.T) {
	dir := t.TempDir()
	path, size, err := New().Download(context.Background(), "nginx", dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if size == 0 {
		t.Fatal("generated sample is empty")
	}

	entries, err := loader.New(pattern.Default()).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != sampleLines {
		t.Errorf("got %d entries, want %d", len(entries), sampleLines)
	}

	var errorCount int
	for _, e := range entries {
		if e.Level == entry.LevelError {
			errorCount++
		}
	}
	if errorCount == 0 {
		t.Error("sample should contain server error responses")
	}
}

func TestNginxSampleIsDeterministic(t *testing.T) {
	if string(nginxSample()) != string(nginxSample()) {
		t.Error("sample generation is not deterministic")
	}
}
