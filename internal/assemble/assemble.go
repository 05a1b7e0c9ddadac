// Package assemble turns retrieved documents and fetched web pages into the bounded,
// citable context block handed to the model.
package assemble

import (
	"fmt"
	"strings"

	"github.com/hyperjump/groundchat/internal/docid"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/pkg/utils"
)

const itemSeparator = "\n------\n"

// FromDocuments builds a context from ranked documents. Documents missing an id,
// content or source are dropped, duplicates by id keep their first occurrence, and
// each content is flattened to one line and cut to budget runes (budget <= 0 means
// no cut). Returns the sentinel when nothing survives.
func FromDocuments(docs []models.RetrievedDocument, budget int) models.AssembledContext {
	seen := make(map[string]struct{}, len(docs))
	items := make([]models.CitableItem, 0, len(docs))
	for _, d := range docs {
		id := strings.TrimSpace(d.ID)
		source := strings.TrimSpace(d.Source)
		content := utils.CollapseWhitespace(d.Content)
		if id == "" || source == "" || content == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, models.CitableItem{
			Index:   len(items) + 1,
			ID:      id,
			Source:  source,
			Content: utils.TruncateRunes(content, budget),
		})
	}
	if len(items) == 0 {
		return models.NoGrounding()
	}
	return models.AssembledContext{Items: items}
}

// FromWebPages builds a context from fetched pages in search order. Pages missing a
// URL, a title or any text are dropped; duplicates are detected on the canonical URL.
// A page without main text contributes its snippet.
func FromWebPages(pages []models.WebPage, budget int) models.AssembledContext {
	seen := make(map[string]struct{}, len(pages))
	items := make([]models.CitableItem, 0, len(pages))
	for _, p := range pages {
		url := strings.TrimSpace(p.URL)
		title := strings.TrimSpace(p.Title)
		content := utils.CollapseWhitespace(p.MainText)
		if content == "" {
			content = utils.CollapseWhitespace(p.Snippet)
		}
		if url == "" || title == "" || content == "" {
			continue
		}
		key := docid.CanonicalURL(url)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, models.CitableItem{
			Index:   len(items) + 1,
			ID:      docid.URLDocID(url),
			Source:  title,
			URL:     url,
			Snippet: utils.CollapseWhitespace(p.Snippet),
			Content: utils.TruncateRunes(content, budget),
		})
	}
	if len(items) == 0 {
		return models.NoGrounding()
	}
	return models.AssembledContext{Items: items}
}

// Render formats the context as the block embedded in the user prompt. The same text
// is stored as the assistant turn's snapshot. The sentinel renders as "".
func Render(ctx models.AssembledContext) string {
	if !ctx.Grounded() {
		return ""
	}
	parts := make([]string, 0, len(ctx.Items))
	for _, it := range ctx.Items {
		parts = append(parts, renderItem(it))
	}
	return strings.Join(parts, itemSeparator)
}

func renderItem(it models.CitableItem) string {
	if it.URL == "" {
		return fmt.Sprintf("[%d]. %s\nfile id: %s\n%s", it.Index, it.Source, it.ID, it.Content)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%d]. %s\n", it.Index, it.Source)
	fmt.Fprintf(&b, "URL: [%s](%s)\n", it.URL, it.URL)
	if it.Snippet != "" {
		fmt.Fprintf(&b, "Snippet: %s\n", it.Snippet)
	}
	fmt.Fprintf(&b, "Excerpt:\n%s", it.Content)
	return b.String()
}
