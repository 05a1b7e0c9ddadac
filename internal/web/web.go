// Package web searches the web and fetches the top result pages concurrently,
// degrading any page that cannot be fetched to its search snippet.
package web

import (
	"context"
	"time"
)

// Freshness restricts search results by age.
type Freshness string

const (
	// FreshnessDay asks for results from the last day.
	FreshnessDay Freshness = "day"
	// FreshnessNone applies no age restriction.
	FreshnessNone Freshness = ""
)

// Candidate is one search hit.
type Candidate struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, freshness Freshness) ([]Candidate, error)
}

// Document is the raw result of a page fetch.
type Document struct {
	URL  string
	HTML string
	// Text is set when the fetcher already has the rendered text (e.g. a browser).
	Text string
}

// Session is an acquired fetch resource. Fetch is safe for concurrent use.
type Session interface {
	Fetch(ctx context.Context, url string) (*Document, error)
	Close() error
}

// Fetcher acquires fetch sessions.
type Fetcher interface {
	Open(ctx context.Context) (Session, error)
}

// maxPages caps concurrent page fetches per research run.
const maxPages = 5

// Options bounds a research run.
type Options struct {
	MaxPages        int
	PageTimeout     time.Duration
	MaxContentChars int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{MaxPages: maxPages, PageTimeout: 30 * time.Second, MaxContentChars: 2000}
}
