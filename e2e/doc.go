//go:build e2e

// Package e2e runs the sitecheck checks against a real browser, the real
// Lighthouse CLI and the live targets.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present),
// network access, and for the Lighthouse test a `lighthouse` binary on PATH
// (npm install -g lighthouse).
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// Environment:
//   - SITECHECK_URL overrides the audited page (default: DefaultURL)
//   - SITECHECK_POSTS_URL overrides the posts endpoint
//   - SITECHECK_HEADFUL=1 shows the browser window
//
// One Chrome is shared by every test in the package; each test opens its
// own page. CSV reports are written to a temporary directory per test.
package e2e
