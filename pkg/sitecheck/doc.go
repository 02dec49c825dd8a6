// Package sitecheck implements end-to-end checks for a website and a
// public REST API.
//
// Three checks are provided:
//   - Lighthouse runs the Lighthouse CLI against a URL and extracts the
//     performance, accessibility, best-practices and SEO category scores.
//   - ResourceMonitor loads a page in headless Chrome (via Rod) and records
//     every finished request whose response status is not 200.
//   - PostsClient fetches a jsonplaceholder-style /posts collection and
//     validates the shape of each post.
//
// Results are written as dated CSV reports (see ReportPath) and, when a
// History is configured, stored in SQLite so that new Lighthouse scores can
// be compared with the median of previous runs.
//
// Runner ties the checks together for the sitecheck command and Scheduler
// repeats them on a cron schedule.
package sitecheck
