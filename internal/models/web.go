package models

import "time"

// PageStatus reports how a web page's content was obtained.
type PageStatus string

const (
	// PageStatusOK means the page was fetched and its main text extracted.
	PageStatusOK PageStatus = "ok"
	// PageStatusDegraded means the fetch failed and MainText falls back to the search snippet.
	PageStatusDegraded PageStatus = "degraded"
)

// WebPage is a search candidate enriched with fetched content. Request-scoped.
type WebPage struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	MainText    string     `json:"main_text"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Status      PageStatus `json:"status"`
}
