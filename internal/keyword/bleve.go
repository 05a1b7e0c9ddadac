package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/groundchat/internal/models"
)

var tagFields = []string{FieldOwner, FieldThreadID, FieldContentType, FieldDomain}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase + unicode tokenize, no stemming
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	for _, f := range tagFields {
		docMapping.AddFieldMappingsAt(f, keywordFieldMapping)
	}
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an
// in-memory index. Remove the index directory after changing the mapping.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func toFields(doc models.DocumentInput) map[string]interface{} {
	return map[string]interface{}{
		"id":             doc.ID,
		"source":         doc.Source,
		"content":        doc.Content,
		FieldOwner:       doc.Tags.Owner,
		FieldThreadID:    doc.Tags.ThreadID,
		FieldContentType: doc.Tags.ContentType,
		FieldDomain:      doc.Tags.Domain,
	}
}

func fromFields(id string, fields map[string]interface{}) models.DocumentInput {
	str := func(k string) string {
		s, _ := fields[k].(string)
		return s
	}
	return models.DocumentInput{
		ID:      id,
		Source:  str("source"),
		Content: str("content"),
		Tags: models.Tags{
			Owner:       str(FieldOwner),
			ThreadID:    str(FieldThreadID),
			ContentType: str(FieldContentType),
			Domain:      str(FieldDomain),
		},
	}
}

// Index indexes a document by its id, replacing any previous version.
func (b *BleveIndex) Index(_ context.Context, doc models.DocumentInput) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	return b.index.Index(doc.ID, toFields(doc))
}

// IndexBatch indexes docs in a single batch.
func (b *BleveIndex) IndexBatch(_ context.Context, docs []models.DocumentInput) error {
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document id is required")
		}
		if err := batch.Index(doc.ID, toFields(doc)); err != nil {
			return fmt.Errorf("failed to batch document %s: %w", doc.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// filterQueries returns one term query per non-empty filter value.
func filterQueries(filter map[string]string) []blevequery.Query {
	keys := make([]string, 0, len(filter))
	for k, v := range filter {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]blevequery.Query, 0, len(keys))
	for _, k := range keys {
		tq := bleve.NewTermQuery(filter[k])
		tq.SetField(k)
		out = append(out, tq)
	}
	return out
}

// Search matches query against content and source, restricted by opts.Filter.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	sourceBoost := 1.0
	var filter map[string]string
	if opts != nil {
		if opts.SourceBoost > 0 {
			sourceBoost = opts.SourceBoost
		}
		filter = opts.Filter
	}
	if limit <= 0 {
		return nil, nil
	}

	cq := bleve.NewMatchQuery(query)
	cq.SetField("content")
	sq := bleve.NewMatchQuery(query)
	sq.SetField("source")
	sq.SetBoost(sourceBoost)
	var q blevequery.Query = bleve.NewDisjunctionQuery(cq, sq)
	if fq := filterQueries(filter); len(fq) > 0 {
		q = bleve.NewConjunctionQuery(append([]blevequery.Query{q}, fq...)...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	if len(results.Hits) == 0 {
		return nil, nil
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score, Document: fromFields(hit.ID, hit.Fields)}
	}
	return out, nil
}

// MatchingIDs returns the ids of all documents satisfying filter. An empty filter returns nil,
// meaning every document is admitted.
func (b *BleveIndex) MatchingIDs(ctx context.Context, filter map[string]string) (map[string]struct{}, error) {
	fq := filterQueries(filter)
	if len(fq) == 0 {
		return nil, nil
	}
	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	ids := make(map[string]struct{})
	if count == 0 {
		return ids, nil
	}
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(fq...))
	req.Size = int(count)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve filter search failed: %w", err)
	}
	for _, hit := range results.Hits {
		ids[hit.ID] = struct{}{}
	}
	return ids, nil
}

// Lookup returns the stored documents for ids.
func (b *BleveIndex) Lookup(ctx context.Context, ids []string) (map[string]models.DocumentInput, error) {
	out := make(map[string]models.DocumentInput, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery(ids))
	req.Size = len(ids)
	req.Fields = []string{"*"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve lookup failed: %w", err)
	}
	for _, hit := range results.Hits {
		out[hit.ID] = fromFields(hit.ID, hit.Fields)
	}
	return out, nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(_ context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
