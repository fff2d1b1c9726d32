// Package result holds the page results produced by a crawl and the report
// assembled from them.
package result

import "time"

// PageResult is one page yielded by the crawl engine.
type PageResult struct {
	URL           string        // The URL that was crawled
	Success       bool          // Whether the page was fetched and rendered
	Markdown      string        // Rendered Markdown body (may be empty)
	Cited         string        // Markdown with links turned into numbered citations
	References    string        // References block matching Cited
	Depth         int           // Link distance from the start URL
	StatusCode    int           // HTTP status code (0 if unreachable or not fetched)
	Error         string        // Error message if the page failed
	ErrorCategory ErrorCategory // Category classification of the error
}

// SavedPage is an accepted page and where it was written.
type SavedPage struct {
	URL     string `json:"url"`
	Path    string `json:"path"`
	Depth   int    `json:"depth"`
	Chars   int    `json:"chars"`
	Written bool   `json:"written"` // false when the Markdown body was empty
}

// FailedPage is a page the engine reported as failed.
type FailedPage struct {
	URL           string        `json:"url"`
	StatusCode    int           `json:"status_code"`
	Error         string        `json:"error"`
	ErrorCategory ErrorCategory `json:"error_type"`
}

// CrawlStats contains aggregate statistics for a crawl run.
type CrawlStats struct {
	Accepted       int           // Pages accepted and indexed
	Failed         int           // Pages the engine reported as failed
	SkippedResumed int           // Pages skipped because a previous run saved them
	Duplicates     int           // Pages the engine yielded more than once
	SkippedBinary  int           // Pages skipped because of a non-HTML extension
	Collisions     int           // Pages whose path was already used by another URL
	Rewritten      int           // Files whose links were rewritten
	Duration       time.Duration // Total time taken
}

// Report is the complete outcome of a crawl run.
type Report struct {
	Pages    []SavedPage  // Accepted pages in acceptance order
	Failures []FailedPage // Failed pages in arrival order
	Accepted []PageResult // The accepted page results themselves
	Stats    CrawlStats
}
