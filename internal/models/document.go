// Package models defines core data structures for conversations, grounding material, and completions.
package models

// Tags are the classification labels a retrieved document carries in the vector store.
type Tags struct {
	Owner       string `json:"owner,omitempty" yaml:"owner,omitempty"`
	ThreadID    string `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Domain      string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// RetrievedDocument is a ranked candidate returned by a retrieval backend. Request-scoped.
type RetrievedDocument struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Tags    Tags    `json:"tags"`
}

// DocumentInput is a document handed to a retrieval backend for indexing.
type DocumentInput struct {
	ID      string `json:"id" yaml:"id"`
	Source  string `json:"source" yaml:"source"`
	Content string `json:"content" yaml:"content"`
	Tags    Tags   `json:"tags" yaml:"tags"`
}
