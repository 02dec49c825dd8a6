package sitecheck

import (
	"strconv"
	"strings"
	"time"
)

// Lighthouse category identifiers as they appear in a JSON report.
const (
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
	CategoryBestPractices = "best-practices"
	CategorySEO           = "seo"
)

// Categories lists the audited categories in report order.
var Categories = []string{
	CategoryPerformance,
	CategoryAccessibility,
	CategoryBestPractices,
	CategorySEO,
}

// CategoryScore is one Lighthouse category result.
type CategoryScore struct {
	// Category is the report identifier, e.g. "best-practices".
	Category string
	// Score is in [0, 1]. Nil when Lighthouse could not compute it.
	Score *float64
}

// Name returns the CSV name of the category ("best-practices" becomes
// "best_practices").
func (c CategoryScore) Name() string {
	return strings.ReplaceAll(c.Category, "-", "_")
}

// FormatScore renders the score for a CSV cell. A missing score is empty.
func (c CategoryScore) FormatScore() string {
	if c.Score == nil {
		return ""
	}
	return strconv.FormatFloat(*c.Score, 'f', -1, 64)
}

// Audit is the outcome of a single Lighthouse run.
type Audit struct {
	URL        string
	FetchedAt  time.Time
	Version    string
	Categories []CategoryScore
}

// Score returns the score for a category and whether it was present and
// non-null.
func (a *Audit) Score(category string) (float64, bool) {
	for _, c := range a.Categories {
		if c.Category == category && c.Score != nil {
			return *c.Score, true
		}
	}
	return 0, false
}

// BrokenRequest is a finished network request whose response status was
// not 200.
type BrokenRequest struct {
	URL    string
	Status int
}

// PostResult is the validation outcome for one post.
type PostResult struct {
	// ID is the post id as printed in messages.
	ID string
	// Reasons lists every failed rule. Empty when the post is valid.
	Reasons []string
}

// Valid reports whether the post passed every rule.
func (r PostResult) Valid() bool {
	return len(r.Reasons) == 0
}

// Message returns "Post ID <id> failed: <reasons>" for an invalid post and
// an empty string for a valid one.
func (r PostResult) Message() string {
	if r.Valid() {
		return ""
	}
	return "Post ID " + r.ID + " failed: " + strings.Join(r.Reasons, ", ")
}
