package sitecheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMissingCategory is returned when a Lighthouse report lacks one of the
// audited categories.
var ErrMissingCategory = errors.New("category missing from lighthouse report")

// CommandRunner runs an external program to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. Output is discarded unless the
// command fails, in which case it is included in the error.
type ExecRunner struct{}

// Run executes name with args and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return nil
}

// LighthouseOption configures a Lighthouse.
type LighthouseOption func(*Lighthouse) error

// WithLighthouseBinary sets the lighthouse executable.
// Default: "lighthouse" looked up on PATH.
func WithLighthouseBinary(bin string) LighthouseOption {
	return func(l *Lighthouse) error {
		if bin == "" {
			return errors.New("lighthouse binary must not be empty")
		}
		l.binary = bin
		return nil
	}
}

// WithChromeFlags sets the flags passed to Chrome through --chrome-flags.
// Default: --headless
func WithChromeFlags(flags ...string) LighthouseOption {
	return func(l *Lighthouse) error {
		l.chromeFlags = flags
		return nil
	}
}

// WithReportPath sets where Lighthouse writes its JSON report.
// Default: ./lighthouse-report.json
func WithReportPath(path string) LighthouseOption {
	return func(l *Lighthouse) error {
		if path == "" {
			return errors.New("report path must not be empty")
		}
		l.reportPath = path
		return nil
	}
}

// WithCommandRunner replaces the process runner.
func WithCommandRunner(r CommandRunner) LighthouseOption {
	return func(l *Lighthouse) error {
		if r == nil {
			return errors.New("command runner must not be nil")
		}
		l.runner = r
		return nil
	}
}

// WithLighthouseLogger sets the logger.
func WithLighthouseLogger(logger *zap.Logger) LighthouseOption {
	return func(l *Lighthouse) error {
		if logger != nil {
			l.logger = logger
		}
		return nil
	}
}

// Lighthouse audits pages with the Lighthouse CLI.
type Lighthouse struct {
	binary      string
	chromeFlags []string
	reportPath  string
	runner      CommandRunner
	logger      *zap.Logger
}

// NewLighthouse creates a Lighthouse with defaults overridden by opts.
func NewLighthouse(opts ...LighthouseOption) (*Lighthouse, error) {
	l := &Lighthouse{
		binary:      "lighthouse",
		chromeFlags: []string{"--headless"},
		reportPath:  "./lighthouse-report.json",
		runner:      ExecRunner{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Args returns the command-line arguments used to audit url.
func (l *Lighthouse) Args(url string) []string {
	args := []string{url, "--quiet"}
	if len(l.chromeFlags) > 0 {
		args = append(args, "--chrome-flags="+strings.Join(l.chromeFlags, " "))
	}
	return append(args,
		"--output=json",
		"--output-path="+l.reportPath,
	)
}

// ReportPath returns where the JSON report is written.
func (l *Lighthouse) ReportPath() string {
	return l.reportPath
}

// Run audits url and returns the category scores from the report.
func (l *Lighthouse) Run(ctx context.Context, url string) (*Audit, error) {
	args := l.Args(url)
	l.logger.Info("running lighthouse", zap.String("url", url), zap.Strings("args", args))

	// A report left over from an earlier run must not be mistaken for this one.
	if err := os.Remove(l.reportPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale report: %w", err)
	}

	start := time.Now()
	if err := l.runner.Run(ctx, l.binary, args...); err != nil {
		return nil, err
	}
	l.logger.Debug("lighthouse finished", zap.Duration("elapsed", time.Since(start)))

	f, err := os.Open(l.reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open lighthouse report: %w", err)
	}
	defer f.Close()

	audit, err := ParseLighthouseReport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.reportPath, err)
	}
	if audit.URL == "" {
		audit.URL = url
	}

	for _, c := range audit.Categories {
		l.logger.Info("lighthouse score",
			zap.String("category", c.Name()),
			zap.String("score", c.FormatScore()))
	}
	return audit, nil
}

type lighthouseReport struct {
	LighthouseVersion string `json:"lighthouseVersion"`
	RequestedURL      string `json:"requestedUrl"`
	FinalURL          string `json:"finalUrl"`
	FetchTime         string `json:"fetchTime"`
	Categories        map[string]struct {
		ID    string   `json:"id"`
		Title string   `json:"title"`
		Score *float64 `json:"score"`
	} `json:"categories"`
}

// ParseLighthouseReport reads a Lighthouse JSON report and extracts the
// audited categories in Categories order.
func ParseLighthouseReport(r io.Reader) (*Audit, error) {
	var report lighthouseReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode lighthouse report: %w", err)
	}

	audit := &Audit{
		URL:     report.RequestedURL,
		Version: report.LighthouseVersion,
	}
	if report.FetchTime != "" {
		if t, err := time.Parse(time.RFC3339, report.FetchTime); err == nil {
			audit.FetchedAt = t
		}
	}

	for _, id := range Categories {
		cat, ok := report.Categories[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCategory, id)
		}
		audit.Categories = append(audit.Categories, CategoryScore{
			Category: id,
			Score:    cat.Score,
		})
	}
	return audit, nil
}
