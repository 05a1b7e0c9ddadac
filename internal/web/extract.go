package web

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hyperjump/groundchat/pkg/utils"
)

// Elements whose text never counts as page content.
var strippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
}

// Content containers in order of preference.
var contentSelectors = []func(*html.Node) bool{
	isTag("main"),
	isTag("article"),
	hasAttr("role", "main"),
	hasAttr("id", "main-content"),
	withClass("main-content"),
	withClass("content"),
	isTag("body"),
}

// ExtractMainText returns the readable text of the page's main content area,
// whitespace-collapsed and cut to maxChars runes (maxChars <= 0 means no cut).
// Returns "" if the document has no text.
func ExtractMainText(rawHTML string, maxChars int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	stripBoilerplate(doc)
	for _, match := range contentSelectors {
		n := findFirst(doc, match)
		if n == nil {
			continue
		}
		if text := utils.CollapseWhitespace(textContent(n)); text != "" {
			return utils.TruncateRunes(text, maxChars)
		}
	}
	return utils.TruncateRunes(utils.CollapseWhitespace(textContent(doc)), maxChars)
}

// CleanText collapses and bounds text a browser already rendered.
func CleanText(text string, maxChars int) string {
	return utils.TruncateRunes(utils.CollapseWhitespace(text), maxChars)
}

var publishedMeta = map[string]bool{
	"article:published_time": true,
	"og:published_time":      true,
	"date":                   true,
	"pubdate":                true,
	"publishdate":            true,
	"dc.date.issued":         true,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
}

// ExtractPublishedAt looks for a publication date in meta tags, schema.org
// markup and <time datetime>. Returns nil when none parses.
func ExtractPublishedAt(rawHTML string) *time.Time {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var candidates []string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "meta":
			key := strings.ToLower(attr(n, "property"))
			if key == "" {
				key = strings.ToLower(attr(n, "name"))
			}
			if publishedMeta[key] || attr(n, "itemprop") == "datePublished" {
				candidates = append(candidates, attr(n, "content"))
			}
		case "time":
			if v := attr(n, "datetime"); v != "" {
				candidates = append(candidates, v)
			}
		default:
			if attr(n, "itemprop") == "datePublished" {
				if v := attr(n, "datetime"); v != "" {
					candidates = append(candidates, v)
				} else if v := attr(n, "content"); v != "" {
					candidates = append(candidates, v)
				}
			}
		}
		return true
	})
	for _, c := range candidates {
		if t, ok := parseDate(c); ok {
			return &t
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// walk visits n and its descendants depth-first. Returning false skips the children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// stripBoilerplate detaches every non-content element so that content selectors
// never match inside navigation, headers or footers.
func stripBoilerplate(doc *html.Node) {
	var drop []*html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && strippedTags[n.Data] {
			drop = append(drop, n)
			return false
		}
		return true
	})
	for _, n := range drop {
		n.Parent.RemoveChild(n)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// textContent concatenates the text below n, skipping non-content elements.
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		switch c.Type {
		case html.ElementNode:
			if strippedTags[c.Data] {
				return false
			}
			if c.Data == "br" || c.Data == "p" || c.Data == "div" || c.Data == "li" {
				sb.WriteByte(' ')
			}
		case html.TextNode:
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func hasAttr(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, key) == val }
}

func withClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}
