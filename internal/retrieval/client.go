// Package retrieval searches the vector store for documents matching a query under a
// structured tag filter.
package retrieval

import (
	"context"

	"github.com/hyperjump/groundchat/internal/keyword"
	"github.com/hyperjump/groundchat/internal/models"
)

// Filter is a conjunction of tag equality constraints. Empty fields are unconstrained.
type Filter struct {
	Owner       string
	ThreadID    string
	ContentType string
	Domain      string
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Matches reports whether tags satisfy every non-empty constraint.
func (f Filter) Matches(t models.Tags) bool {
	return (f.Owner == "" || f.Owner == t.Owner) &&
		(f.ThreadID == "" || f.ThreadID == t.ThreadID) &&
		(f.ContentType == "" || f.ContentType == t.ContentType) &&
		(f.Domain == "" || f.Domain == t.Domain)
}

// fields returns the filter keyed by keyword index field names.
func (f Filter) fields() map[string]string {
	return map[string]string{
		keyword.FieldOwner:       f.Owner,
		keyword.FieldThreadID:    f.ThreadID,
		keyword.FieldContentType: f.ContentType,
		keyword.FieldDomain:      f.Domain,
	}
}

// Client is a vector similarity search backend. Search returns at most topK documents
// ranked best first; no match is a nil slice and a nil error.
type Client interface {
	Search(ctx context.Context, query string, filter Filter, topK int) ([]models.RetrievedDocument, error)
}
