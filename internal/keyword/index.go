// Package keyword provides the keyword (BM25) side of local retrieval. The index also
// stores each document's source, content and tags so hits can be materialized.
package keyword

import (
	"context"

	"github.com/hyperjump/groundchat/internal/models"
)

// Tag field names usable in SearchOptions.Filter.
const (
	FieldOwner       = "owner"
	FieldThreadID    = "thread_id"
	FieldContentType = "content_type"
	FieldDomain      = "domain"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Filter restricts hits to documents whose tag fields equal the given values.
	Filter map[string]string
	// SourceBoost multiplies the score contribution of matches in the source label.
	SourceBoost float64
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, doc models.DocumentInput) error
	IndexBatch(ctx context.Context, docs []models.DocumentInput) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// MatchingIDs returns the ids of every document satisfying filter.
	MatchingIDs(ctx context.Context, filter map[string]string) (map[string]struct{}, error)
	// Lookup returns the stored documents for ids; unknown ids are omitted.
	Lookup(ctx context.Context, ids []string) (map[string]models.DocumentInput, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID       string
	Score    float64
	Document models.DocumentInput
}
