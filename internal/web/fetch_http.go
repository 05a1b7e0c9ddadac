package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPFetcher fetches pages with plain GET requests. It cannot run scripts, so
// client-rendered pages usually degrade to their snippet.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher. A nil client uses a fresh http.Client.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

// Open returns a session sharing the fetcher's client.
func (f *HTTPFetcher) Open(ctx context.Context) (Session, error) {
	return &httpSession{f: f}, nil
}

type httpSession struct {
	f *HTTPFetcher
}

func (s *httpSession) Fetch(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.f.userAgent != "" {
		req.Header.Set("User-Agent", s.f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/plain") {
		return &Document{URL: url, Text: string(body)}, nil
	}
	return &Document{URL: url, HTML: string(body)}, nil
}

func (s *httpSession) Close() error {
	s.f.client.CloseIdleConnections()
	return nil
}
