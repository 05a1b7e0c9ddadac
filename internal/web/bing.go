package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

// BingSearcher queries the Bing Web Search v7 API.
type BingSearcher struct {
	endpoint string
	apiKey   string
	market   string
	count    int
	client   *http.Client
	limiter  *rate.Limiter
}

// NewBingSearcher creates a searcher for endpoint (e.g. https://api.bing.microsoft.com/v7.0/search).
// rps <= 0 disables rate limiting.
func NewBingSearcher(endpoint, apiKey, market string, count int, rps float64, client *http.Client) *BingSearcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &BingSearcher{
		endpoint: endpoint,
		apiKey:   apiKey,
		market:   market,
		count:    count,
		client:   client,
		limiter:  newLimiter(rps),
	}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search returns the web page hits for query. A response without webPages is an empty result.
func (s *BingSearcher) Search(ctx context.Context, query string, freshness Freshness) ([]Candidate, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	if s.market != "" {
		q.Set("mkt", s.market)
	}
	if s.count > 0 {
		q.Set("count", strconv.Itoa(s.count))
	}
	if freshness == FreshnessDay {
		q.Set("freshness", "Day")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing returned HTTP %d", resp.StatusCode)
	}

	var br bingResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&br); err != nil {
		return nil, fmt.Errorf("failed to decode bing response: %w", err)
	}

	out := make([]Candidate, 0, len(br.WebPages.Value))
	for _, v := range br.WebPages.Value {
		if v.URL == "" {
			continue
		}
		out = append(out, Candidate{URL: v.URL, Title: v.Name, Snippet: v.Snippet})
	}
	return out, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
