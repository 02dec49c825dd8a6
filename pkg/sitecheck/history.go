package sitecheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoHistory is returned by Median when no previous scores exist.
var ErrNoHistory = errors.New("no history")

// History stores check results in SQLite for trend tracking.
type History struct {
	db *sql.DB
}

// Regression is a category whose score dropped below the historical median
// by more than the tolerance.
type Regression struct {
	Category string
	Score    float64
	Median   float64
	Samples  int
}

// NewHistory wraps an existing connection and runs migrations.
func NewHistory(db *sql.DB) (*History, error) {
	h := &History{db: db}
	if err := h.migrate(); err != nil {
		return nil, fmt.Errorf("history migration failed: %w", err)
	}
	return h, nil
}

// OpenHistory opens (or creates) the SQLite database at path.
// Use ":memory:" for a throwaway store.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}
	h, err := NewHistory(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS lighthouse_scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			url TEXT NOT NULL,
			category TEXT NOT NULL,
			score REAL,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lighthouse_scores_url_category
			ON lighthouse_scores (url, category, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS resource_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			url TEXT NOT NULL,
			broken INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS post_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			url TEXT NOT NULL,
			total INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := h.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// RecordAudit stores every category score of audit under runID.
func (h *History) RecordAudit(ctx context.Context, runID string, audit *Audit, at time.Time) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range audit.Categories {
		var score sql.NullFloat64
		if c.Score != nil {
			score = sql.NullFloat64{Float64: *c.Score, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lighthouse_scores (run_id, url, category, score, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			runID, audit.URL, c.Category, score, at.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to record %s score: %w", c.Category, err)
		}
	}
	return tx.Commit()
}

// RecordResources stores the number of broken requests seen for url.
func (h *History) RecordResources(ctx context.Context, runID, url string, broken int, at time.Time) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO resource_runs (run_id, url, broken, recorded_at) VALUES (?, ?, ?, ?)`,
		runID, url, broken, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record resource run: %w", err)
	}
	return nil
}

// RecordPosts stores the outcome of a posts validation run.
func (h *History) RecordPosts(ctx context.Context, runID, url string, total, failed int, at time.Time) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO post_runs (run_id, url, total, failed, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		runID, url, total, failed, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record posts run: %w", err)
	}
	return nil
}

// Median returns the median of the latest window non-null scores for
// url/category, skipping scores recorded under excludeRun. It also returns
// how many samples were used.
func (h *History) Median(ctx context.Context, url, category string, window int, excludeRun string) (float64, int, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT score FROM lighthouse_scores
		 WHERE url = ? AND category = ? AND score IS NOT NULL AND run_id != ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		url, category, excludeRun, window)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return 0, 0, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if len(scores) == 0 {
		return 0, 0, ErrNoHistory
	}
	return median(scores), len(scores), nil
}

// Compare returns the categories of audit that scored more than tolerance
// below the median of the previous window runs. Categories without history
// or without a score are skipped.
func (h *History) Compare(ctx context.Context, runID string, audit *Audit, window int, tolerance float64) ([]Regression, error) {
	var regressions []Regression
	for _, c := range audit.Categories {
		if c.Score == nil {
			continue
		}
		med, n, err := h.Median(ctx, audit.URL, c.Category, window, runID)
		if errors.Is(err, ErrNoHistory) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if *c.Score < med-tolerance {
			regressions = append(regressions, Regression{
				Category: c.Category,
				Score:    *c.Score,
				Median:   med,
				Samples:  n,
			})
		}
	}
	return regressions, nil
}

// BrokenTrend returns the broken-request counts of the latest n runs for
// url, newest first.
func (h *History) BrokenTrend(ctx context.Context, url string, n int) ([]int, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT broken FROM resource_runs WHERE url = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		url, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource runs: %w", err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
