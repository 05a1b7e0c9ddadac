package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/hyperjump/groundchat/pkg/utils"
)

// DuckDuckGoSearcher scrapes the DuckDuckGo HTML endpoint. It needs no API key.
type DuckDuckGoSearcher struct {
	endpoint  string
	userAgent string
	limit     int
	client    *http.Client
	limiter   *rate.Limiter
}

// NewDuckDuckGoSearcher creates a searcher for endpoint (e.g. https://html.duckduckgo.com/html/).
func NewDuckDuckGoSearcher(endpoint, userAgent string, limit int, rps float64, client *http.Client) *DuckDuckGoSearcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &DuckDuckGoSearcher{
		endpoint:  endpoint,
		userAgent: userAgent,
		limit:     limit,
		client:    client,
		limiter:   newLimiter(rps),
	}
}

// Search returns result links in page order.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, freshness Freshness) ([]Candidate, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	if freshness == FreshnessDay {
		q.Set("df", "d")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseDuckDuckGo(string(body), s.limit)
}

// parseDuckDuckGo extracts results from the HTML result page. limit <= 0 means no limit.
func parseDuckDuckGo(body string, limit int) ([]Candidate, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out []Candidate
	walk(doc, func(n *html.Node) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "div" && withClass("result")(n) {
			if c := parseResult(n); c.URL != "" && c.Title != "" {
				out = append(out, c)
			}
			return false
		}
		return true
	})
	return out, nil
}

func parseResult(n *html.Node) Candidate {
	var c Candidate
	walk(n, func(e *html.Node) bool {
		if e.Type != html.ElementNode {
			return true
		}
		switch {
		case withClass("result__a")(e):
			c.URL = resolveRedirect(attr(e, "href"))
			c.Title = utils.CollapseWhitespace(textContent(e))
			return false
		case withClass("result__snippet")(e):
			c.Snippet = utils.CollapseWhitespace(textContent(e))
			return false
		}
		return true
	})
	return c
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
