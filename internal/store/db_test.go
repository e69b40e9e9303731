package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvoss/logvigil/internal/stats"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	db := testDB(t)

	r := Report{Filename: "app.json", TotalEntries: 12}
	if err := db.Save(&r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if r.ID == "" {
		t.Error("Save should assign an id")
	}
	if r.CreatedAt.IsZero() {
		t.Error("Save should assign a timestamp")
	}

	got, err := db.Get(r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != "app.json" || got.TotalEntries != 12 {
		t.Errorf("got %q/%d, want app.json/12", got.Filename, got.TotalEntries)
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	db := testDB(t)

	r := Report{
		ID:           "report-1",
		CreatedAt:    time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Filename:     "access.log",
		TotalEntries: 3,
		Statistics: stats.Statistics{
			TotalEntries: 3,
			Levels:       map[string]int{"ERROR": 2, "INFO": 1},
			ErrorCount:   2,
			UniqueIPs:    2,
		},
		Analysis: "## QUICK OVERVIEW\nMostly database trouble.",
	}
	if err := db.Save(&r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := db.Get("report-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
	if got.Analysis != r.Analysis {
		t.Errorf("Analysis = %q", got.Analysis)
	}
	if got.Statistics.ErrorCount != 2 {
		t.Errorf("Statistics.ErrorCount = %d, want 2", got.Statistics.ErrorCount)
	}
	if got.Statistics.Levels["ERROR"] != 2 {
		t.Errorf("Statistics.Levels = %v", got.Statistics.Levels)
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)

	if _, err := db.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := testDB(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.log", "b.log", "c.log"} {
		r := Report{
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			Filename:     name,
			TotalEntries: i,
		}
		if err := db.Save(&r); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	reports, err := db.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	wantOrder := []string{"c.log", "b.log", "a.log"}
	for i, want := range wantOrder {
		if reports[i].Filename != want {
			t.Errorf("reports[%d] = %q, want %q", i, reports[i].Filename, want)
		}
	}
}

func TestListLimit(t *testing.T) {
	db := testDB(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := Report{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Filename:  fmt.Sprintf("file-%d.log", i),
		}
		if err := db.Save(&r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	reports, err := db.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Filename != "file-4.log" {
		t.Errorf("reports[0] = %q, want the newest", reports[0].Filename)
	}
}

func TestListDefaultLimit(t *testing.T) {
	db := testDB(t)

	r := Report{Filename: "only.log"}
	if err := db.Save(&r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reports, err := db.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r := Report{Filename: "keep.log", TotalEntries: 7}
	if err := db.Save(&r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer db2.Close()

	got, err := db2.Get(r.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.TotalEntries != 7 {
		t.Errorf("TotalEntries = %d, want 7", got.TotalEntries)
	}
}
