package sitecheck

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Report name prefixes.
const (
	ScoresReport  = "lighthouse-scores"
	BrokenReport  = "broken_requests"
	PostsReport   = "posts_validation"
	reportDateFmt = "2006-01-02"
)

// ReportPath returns <dir>/<prefix>_<YYYY-MM-DD>_report.csv for the day of t.
// Reports from the same day overwrite each other.
func ReportPath(dir, prefix string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_report.csv", prefix, t.Format(reportDateFmt)))
}

// WriteScoresCSV writes a category,score table.
func WriteScoresCSV(w io.Writer, scores []CategoryScore) error {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{s.Name(), s.FormatScore()})
	}
	return writeCSV(w, []string{"category", "score"}, rows)
}

// WriteBrokenRequestsCSV writes a url,status table. An empty list still
// produces the header row.
func WriteBrokenRequestsCSV(w io.Writer, broken []BrokenRequest) error {
	rows := make([][]string, 0, len(broken))
	for _, b := range broken {
		rows = append(rows, []string{b.URL, strconv.Itoa(b.Status)})
	}
	return writeCSV(w, []string{"url", "status"}, rows)
}

// WritePostResultsCSV writes an id,valid,reasons table. Reasons are joined
// with "; ".
func WritePostResultsCSV(w io.Writer, results []PostResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.ID, strconv.FormatBool(r.Valid()), strings.Join(r.Reasons, "; ")})
	}
	return writeCSV(w, []string{"id", "valid", "reasons"}, rows)
}

// WriteReportFile creates path (and its directory) and fills it with write.
func WriteReportFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
