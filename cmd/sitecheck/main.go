// sitecheck runs website and API health checks.
//
// Usage:
//
//	sitecheck lighthouse             # Lighthouse scores -> lighthouse-scores_<date>_report.csv
//	sitecheck resources              # non-200 requests  -> broken_requests_<date>_report.csv
//	sitecheck posts                  # posts API shape   -> posts_validation_<date>_report.csv
//	sitecheck run                    # all of the above, concurrently
//	sitecheck watch --schedule @daily
//	sitecheck history --db sitecheck.db
package main

import (
	"fmt"
	"os"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
