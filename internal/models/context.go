package models

// CitableItem is one entry of an assembled context. Index is its 1-based position.
type CitableItem struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Source  string `json:"source"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content"`
}

// AssembledContext is the bounded, citable grounding block handed to the model.
// The zero value (no items) is the "no grounding" sentinel.
type AssembledContext struct {
	Items []CitableItem `json:"items"`
}

// NoGrounding returns the sentinel context.
func NoGrounding() AssembledContext {
	return AssembledContext{}
}

// Grounded reports whether the context carries at least one item.
func (c AssembledContext) Grounded() bool {
	return len(c.Items) > 0
}
