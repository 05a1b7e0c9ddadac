package web

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/groundchat/internal/metrics"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/pkg/utils"
)

// Researcher runs a search and fetches the top pages with per-page isolation.
type Researcher struct {
	searcher Searcher
	fetcher  Fetcher
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(r *Researcher) {
		r.logger = l
	}
}

// WithMetrics records page fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Researcher) {
		r.metrics = m
	}
}

// WithOptions overrides the default limits. Zero fields keep their defaults;
// MaxPages never exceeds five.
func WithOptions(o Options) Option {
	return func(r *Researcher) {
		if o.MaxPages > 0 {
			r.opts.MaxPages = min(o.MaxPages, maxPages)
		}
		if o.PageTimeout > 0 {
			r.opts.PageTimeout = o.PageTimeout
		}
		if o.MaxContentChars > 0 {
			r.opts.MaxContentChars = o.MaxContentChars
		}
	}
}

// NewResearcher creates a researcher over searcher and fetcher.
func NewResearcher(searcher Searcher, fetcher Fetcher, opts ...Option) *Researcher {
	r := &Researcher{searcher: searcher, fetcher: fetcher, opts: DefaultOptions()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// Research returns up to MaxPages pages in search order. A page that cannot be
// fetched is kept with its snippet as text and Status degraded. An error is
// returned only when the search itself fails.
func (r *Researcher) Research(ctx context.Context, query string, freshness Freshness) ([]models.WebPage, error) {
	candidates, err := r.searcher.Search(ctx, query, freshness)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	if len(candidates) > r.opts.MaxPages {
		candidates = candidates[:r.opts.MaxPages]
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	pages := make([]models.WebPage, len(candidates))
	for i, c := range candidates {
		pages[i] = degraded(c)
	}

	session, err := r.fetcher.Open(ctx)
	if err != nil {
		r.logger.Warn("failed to open fetch session, using snippets", zap.Error(err))
		for range pages {
			r.metrics.PageFetched(string(models.PageStatusDegraded))
		}
		return pages, nil
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("failed to close fetch session", zap.Error(err))
		}
	}()

	// Every goroutine returns nil: one page failing must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.opts.MaxPages)
	for i, c := range candidates {
		g.Go(func() error {
			pages[i] = r.fetchPage(ctx, session, c)
			r.metrics.PageFetched(string(pages[i].Status))
			return nil
		})
	}
	_ = g.Wait()

	return pages, nil
}

func (r *Researcher) fetchPage(ctx context.Context, session Session, c Candidate) models.WebPage {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PageTimeout)
	defer cancel()

	doc, err := session.Fetch(ctx, c.URL)
	if err != nil {
		r.logger.Warn("page fetch failed", zap.String("url", c.URL), zap.Error(err))
		return degraded(c)
	}

	text := CleanText(doc.Text, r.opts.MaxContentChars)
	if text == "" {
		text = ExtractMainText(doc.HTML, r.opts.MaxContentChars)
	}
	if text == "" {
		r.logger.Debug("page has no extractable text", zap.String("url", c.URL))
		return degraded(c)
	}

	page := models.WebPage{
		URL:      c.URL,
		Title:    c.Title,
		Snippet:  c.Snippet,
		MainText: text,
		Status:   models.PageStatusOK,
	}
	if doc.HTML != "" {
		page.PublishedAt = ExtractPublishedAt(doc.HTML)
	}
	return page
}

func degraded(c Candidate) models.WebPage {
	return models.WebPage{
		URL:      c.URL,
		Title:    c.Title,
		Snippet:  c.Snippet,
		MainText: c.Snippet,
		Status:   models.PageStatusDegraded,
	}
}
