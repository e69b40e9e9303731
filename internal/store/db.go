// Package store persists analysis reports in SQLite. Alerts are
// ephemeral and never stored; only the output of analysis runs is.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nvoss/logvigil/internal/stats"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 20

// ErrNotFound is returned by Get for an unknown report id.
var ErrNotFound = errors.New("report not found")

// Report is one stored analysis run: which file, what the statistics
// said, and what the model made of it.
type Report struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	Filename     string           `json:"filename"`
	TotalEntries int              `json:"total_entries"`
	Statistics   stats.Statistics `json:"statistics"`
	Analysis     string           `json:"analysis,omitempty"`
}

// DB wraps an SQLite connection for report storage.
type DB struct {
	db *sql.DB
}

// Open opens or creates an SQLite database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Save stores the report, assigning an id and timestamp when absent.
func (d *DB) Save(r *Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := json.Marshal(r.Statistics)
	if err != nil {
		statsJSON = []byte("{}")
	}

	_, err = d.db.Exec(`
		INSERT INTO reports (id, created_at, filename, total_entries, statistics, analysis)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.Filename,
		r.TotalEntries,
		string(statsJSON),
		r.Analysis,
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// List returns the newest reports, at most limit (DefaultListLimit when
// limit is not positive).
func (d *DB) List(limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := d.db.Query(`
		SELECT id, created_at, filename, total_entries, statistics, analysis
		FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Get returns the report with the given id, or ErrNotFound.
func (d *DB) Get(id string) (Report, error) {
	row := d.db.QueryRow(`
		SELECT id, created_at, filename, total_entries, statistics, analysis
		FROM reports WHERE id = ?`, id)

	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return r, err
}

func scanReport(row interface{ Scan(dest ...any) error }) (Report, error) {
	var r Report
	var createdAt, statsJSON string
	var analysis sql.NullString

	err := row.Scan(
		&r.ID,
		&createdAt,
		&r.Filename,
		&r.TotalEntries,
		&statsJSON,
		&analysis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, err
	}
	if err != nil {
		return Report{}, fmt.Errorf("scanning report row: %w", err)
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.Analysis = analysis.String
	if statsJSON != "" {
		_ = json.Unmarshal([]byte(statsJSON), &r.Statistics)
	}
	return r, nil
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id            TEXT PRIMARY KEY,
			created_at    TEXT NOT NULL,
			filename      TEXT NOT NULL,
			total_entries INTEGER NOT NULL,
			statistics    TEXT,
			analysis      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("database schema up to date")
	return nil
}
