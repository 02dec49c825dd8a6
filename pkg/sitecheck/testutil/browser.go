// browser.go provides browser fixtures for E2E testing.
// A session opens one Chrome for every test in the binary; each test gets
// its own page that is closed when the test ends.
package testutil

import (
	"os"
	"sync"
	"testing"

	"github.com/thesyncim/sitecheck/pkg/sitecheck"
)

// Session shares one browser between tests.
type Session struct {
	cfg sitecheck.BrowserConfig

	once    sync.Once
	browser *sitecheck.Browser
	err     error
}

// NewSession creates a session that launches Chrome on first use.
// SITECHECK_HEADFUL=1 shows the browser window.
func NewSession(cfg sitecheck.BrowserConfig) *Session {
	if os.Getenv("SITECHECK_HEADFUL") == "1" {
		cfg.Headless = false
	}
	return &Session{cfg: cfg}
}

// Browser returns the shared browser, launching it if needed. Fails the test
// if Chrome cannot be started.
func (s *Session) Browser(t testing.TB) *sitecheck.Browser {
	t.Helper()

	s.once.Do(func() {
		s.browser, s.err = sitecheck.NewBrowser(s.cfg)
	})
	if s.err != nil {
		t.Fatalf("failed to create browser: %v", s.err)
	}
	return s.browser
}

// Page opens a new page for the calling test and closes it on cleanup.
func (s *Session) Page(t testing.TB) *sitecheck.Page {
	t.Helper()

	page, err := s.Browser(t).NewPage()
	if err != nil {
		t.Fatalf("failed to open page: %v", err)
	}
	t.Cleanup(func() {
		if err := page.Close(); err != nil {
			t.Logf("page close error: %v", err)
		}
	})
	return page
}

// Close shuts the browser down if it was launched.
// Call it from TestMain after m.Run.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}
