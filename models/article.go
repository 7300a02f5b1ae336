// Package models defines data structures for the scraper.
package models

import "time"

// ArticleLink is one harvested article URL with the anchor text it was
// discovered under and the category page number it came from.
type ArticleLink struct {
	URL          string    `csv:"url" json:"url"`
	Title        string    `csv:"title" json:"title"`
	Page         int       `csv:"page" json:"page"`
	DiscoveredAt time.Time `csv:"discovered_at" json:"discovered_at"`
}

// PageContent is the transient record of a single page fetch. The body is
// discarded once link extraction has run.
type PageContent struct {
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Retries    int
}

// Reason explains why a session stopped paginating.
type Reason string

const (
	// ReasonExhaustedPages means the page had no next-page control.
	ReasonExhaustedPages Reason = "exhausted-pages"
	// ReasonDuplicateDetected means a non-empty page produced zero new links.
	ReasonDuplicateDetected Reason = "duplicate-detected"
	// ReasonLoopDetected means the next page URL was already visited.
	ReasonLoopDetected Reason = "loop-detected"
	// ReasonClientError means a non-retryable 4xx response ended the session.
	ReasonClientError Reason = "client-error"
	// ReasonRetriesExhausted means transient failures outlasted the retry budget.
	ReasonRetriesExhausted Reason = "retries-exhausted"
	// ReasonPageLimit means the configured page cap was reached.
	ReasonPageLimit Reason = "page-limit"
	// ReasonCancelled means the run was interrupted between pages.
	ReasonCancelled Reason = "cancelled"
)

// Aborted reports whether the reason marks an abnormal stop. Aborted
// sessions still return whatever was accumulated as a partial result.
func (r Reason) Aborted() bool {
	return r == ReasonClientError || r == ReasonRetriesExhausted
}

// SessionResult holds the outcome of paginating one category URL.
type SessionResult struct {
	CategoryURL string
	Links       []*ArticleLink
	Reason      Reason
	StartTime   time.Time
	EndTime     time.Time
	PagesUsed   int
	RetryCount  int
	Err         error
}
