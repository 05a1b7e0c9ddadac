package web

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFetcher renders pages in a headless Chromium driven by go-rod. Each Open
// launches a browser that lives until the session is closed.
type RodFetcher struct {
	bin string
}

// NewRodFetcher creates a fetcher. An empty bin lets the launcher find or download a browser.
func NewRodFetcher(bin string) *RodFetcher {
	return &RodFetcher{bin: bin}
}

// Open launches and connects to a headless browser.
func (f *RodFetcher) Open(ctx context.Context) (Session, error) {
	l := launcher.New().Headless(true).Leakless(true)
	if f.bin != "" {
		l = l.Bin(f.bin)
	}
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return &rodSession{launcher: l, browser: browser}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// Fetch opens a tab, waits for the load event and returns the rendered HTML.
// The tab is closed on every path.
func (s *rodSession) Fetch(ctx context.Context, url string) (*Document, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	body, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	return &Document{URL: url, HTML: body}, nil
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}
