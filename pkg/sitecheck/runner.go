package sitecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/sitecheck/pkg/sitecheck/internal/clock"
)

// ErrChecksFailed is wrapped by errors that report failed assertions, as
// opposed to errors running a check.
var ErrChecksFailed = errors.New("checks failed")

// LighthouseResult is the outcome of Runner.RunLighthouse.
type LighthouseResult struct {
	Audit       *Audit
	Report      string
	Regressions []Regression
}

// ResourcesResult is the outcome of Runner.RunResources.
type ResourcesResult struct {
	URL    string
	Broken []BrokenRequest
	Report string
}

// PostsResult is the outcome of Runner.RunPosts.
type PostsResult struct {
	Results []PostResult
	Failed  int
	Report  string
}

// Summary collects the results of Runner.RunAll. A nil field means that
// check did not complete.
type Summary struct {
	RunID      string
	Lighthouse *LighthouseResult
	Resources  *ResourcesResult
	Posts      *PostsResult
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLighthouse replaces the Lighthouse used by the runner.
func WithLighthouse(l *Lighthouse) RunnerOption {
	return func(r *Runner) { r.lighthouse = l }
}

// WithHistory records results in h. The runner does not close it.
func WithHistory(h *History) RunnerOption {
	return func(r *Runner) { r.history = h }
}

// WithHTTPClient sets the client used for API checks.
func WithHTTPClient(c *http.Client) RunnerOption {
	return func(r *Runner) { r.httpClient = c }
}

// WithBrowserFactory replaces how the runner launches Chrome.
func WithBrowserFactory(f func(BrowserConfig) (PageOpener, error)) RunnerOption {
	return func(r *Runner) { r.newBrowser = f }
}

// WithClock sets the clock used for report dates and history timestamps.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runner executes the configured checks, writes their reports and records
// history.
type Runner struct {
	cfg        Config
	lighthouse *Lighthouse
	history    *History
	httpClient *http.Client
	newBrowser func(BrowserConfig) (PageOpener, error)
	clock      clock.Clock
	logger     *zap.Logger

	browserMu sync.Mutex
	browser   PageOpener
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		clock:  clock.System{},
		logger: zap.NewNop(),
		newBrowser: func(c BrowserConfig) (PageOpener, error) {
			return NewBrowser(c)
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if r.lighthouse == nil {
		l, err := NewLighthouse(
			WithLighthouseBinary(cfg.Lighthouse.Binary),
			WithChromeFlags(cfg.Lighthouse.ChromeFlags...),
			WithReportPath(cfg.Lighthouse.ReportPath),
			WithLighthouseLogger(r.logger.Named("lighthouse")),
		)
		if err != nil {
			return nil, err
		}
		r.lighthouse = l
	}
	return r, nil
}

// Close releases the shared browser, if one was started.
func (r *Runner) Close() error {
	r.browserMu.Lock()
	defer r.browserMu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

// RunLighthouse audits the configured URL, writes the scores report and,
// with history enabled, records the scores and compares them with the
// median of previous runs.
func (r *Runner) RunLighthouse(ctx context.Context, runID string) (*LighthouseResult, error) {
	audit, err := r.lighthouse.Run(ctx, r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("lighthouse: %w", err)
	}
	// Scores are keyed by the configured URL so redirects do not split the
	// history.
	audit.URL = r.cfg.URL

	now := r.clock.Now()
	res := &LighthouseResult{
		Audit:  audit,
		Report: ReportPath(r.cfg.OutputDir, ScoresReport, now),
	}
	err = WriteReportFile(res.Report, func(w io.Writer) error {
		return WriteScoresCSV(w, audit.Categories)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("wrote lighthouse report", zap.String("path", res.Report))

	if r.history != nil {
		if err := r.history.RecordAudit(ctx, runID, audit, now); err != nil {
			return nil, err
		}
		res.Regressions, err = r.history.Compare(ctx, runID, audit, r.cfg.History.Window, r.cfg.History.Tolerance)
		if err != nil {
			return nil, err
		}
		for _, reg := range res.Regressions {
			r.logger.Warn("score regression",
				zap.String("category", reg.Category),
				zap.Float64("score", reg.Score),
				zap.Float64("median", reg.Median),
				zap.Int("samples", reg.Samples))
		}
	}
	return res, nil
}

// RunResources loads the configured URL in a fresh page and writes the
// broken requests report.
func (r *Runner) RunResources(ctx context.Context, runID string) (*ResourcesResult, error) {
	b, err := r.sharedBrowser()
	if err != nil {
		return nil, err
	}
	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	monitor := NewResourceMonitor(r.cfg.Browser, r.logger.Named("resources"))
	broken, err := monitor.Check(ctx, page.Page, r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}

	now := r.clock.Now()
	res := &ResourcesResult{
		URL:    r.cfg.URL,
		Broken: broken,
		Report: ReportPath(r.cfg.OutputDir, BrokenReport, now),
	}
	err = WriteReportFile(res.Report, func(w io.Writer) error {
		return WriteBrokenRequestsCSV(w, broken)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("wrote broken requests report", zap.String("path", res.Report), zap.Int("broken", len(broken)))

	if r.history != nil {
		if err := r.history.RecordResources(ctx, runID, r.cfg.URL, len(broken), now); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// RunPosts validates the configured posts endpoint and writes the
// validation report.
func (r *Runner) RunPosts(ctx context.Context, runID string) (*PostsResult, error) {
	client := NewPostsClient(r.cfg.PostsURL, r.httpClient, r.logger.Named("posts"))
	results, err := client.Validate(ctx)
	if err != nil {
		return nil, fmt.Errorf("posts: %w", err)
	}

	now := r.clock.Now()
	res := &PostsResult{
		Results: results,
		Report:  ReportPath(r.cfg.OutputDir, PostsReport, now),
	}
	for _, pr := range results {
		if !pr.Valid() {
			res.Failed++
		}
	}
	err = WriteReportFile(res.Report, func(w io.Writer) error {
		return WritePostResultsCSV(w, results)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("wrote posts report",
		zap.String("path", res.Report),
		zap.Int("posts", len(results)),
		zap.Int("failed", res.Failed))

	if r.history != nil {
		if err := r.history.RecordPosts(ctx, runID, r.cfg.PostsURL, len(results), res.Failed, now); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// RunAll runs every check under a new run id. Lighthouse runs first and
// alone so that its scores are not skewed by the browser and HTTP load of
// the other checks; resources and posts then run concurrently. Every check
// runs to completion even if another fails; the returned error joins all
// check errors and Verdict failures.
func (r *Runner) RunAll(ctx context.Context) (*Summary, error) {
	s := &Summary{RunID: NewRunID()}
	r.logger.Info("starting run", zap.String("run_id", s.RunID))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	res, err := r.RunLighthouse(ctx, s.RunID)
	s.Lighthouse = res
	collect(err)

	g.Go(func() error {
		res, err := r.RunResources(ctx, s.RunID)
		s.Resources = res
		collect(err)
		return nil
	})
	g.Go(func() error {
		res, err := r.RunPosts(ctx, s.RunID)
		s.Posts = res
		collect(err)
		return nil
	})
	g.Wait()

	collect(r.Verdict(s))
	return s, errors.Join(errs...)
}

// Verdict turns a summary into pass/fail: invalid posts always fail,
// broken requests fail when FailOnBroken is set and score regressions
// fail when history is enabled.
func (r *Runner) Verdict(s *Summary) error {
	var errs []error
	if s.Posts != nil && s.Posts.Failed > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d posts failed validation", ErrChecksFailed, s.Posts.Failed, len(s.Posts.Results)))
	}
	if s.Resources != nil && r.cfg.FailOnBroken && len(s.Resources.Broken) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d broken requests on %s", ErrChecksFailed, len(s.Resources.Broken), s.Resources.URL))
	}
	if s.Lighthouse != nil && len(s.Lighthouse.Regressions) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d lighthouse categories regressed", ErrChecksFailed, len(s.Lighthouse.Regressions)))
	}
	return errors.Join(errs...)
}

func (r *Runner) sharedBrowser() (PageOpener, error) {
	r.browserMu.Lock()
	defer r.browserMu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}
	b, err := r.newBrowser(r.cfg.Browser)
	if err != nil {
		return nil, err
	}
	r.browser = b
	return b, nil
}

// NewRunID returns a unique identifier for one execution of the checks.
func NewRunID() string {
	return uuid.NewString()
}
