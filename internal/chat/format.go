package chat

import "regexp"

var htmlLink = regexp.MustCompile(`<a\s+href="([^"]+)"[^>]*>([^<]+)</a>`)

// HTMLLinksToMarkdown rewrites <a href="u">t</a> anchors as [t](u).
func HTMLLinksToMarkdown(s string) string {
	return htmlLink.ReplaceAllString(s, "[$2]($1)")
}
