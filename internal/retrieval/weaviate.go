package retrieval

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/hyperjump/groundchat/internal/embedding"
	"github.com/hyperjump/groundchat/internal/models"
)

// Weaviate property names of the document class.
const (
	propDocID       = "docId"
	propSource      = "source"
	propContent     = "content"
	propOwner       = "owner"
	propThreadID    = "threadId"
	propContentType = "contentType"
	propDomain      = "domain"
)

// WeaviateStore searches a Weaviate class with nearText or nearVector and an And where-filter.
type WeaviateStore struct {
	client    *weaviate.Client
	className string
	// embedder is used for nearVector queries; nil means nearText.
	embedder embedding.Embedder
}

// NewWeaviateClient builds a Weaviate client for scheme://host with an optional API key.
func NewWeaviateClient(scheme, host, apiKey string) (*weaviate.Client, error) {
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

// NewWeaviateStore creates a store over className. When embedder is nil the server-side
// vectorizer is used through nearText.
func NewWeaviateStore(client *weaviate.Client, className string, embedder embedding.Embedder) *WeaviateStore {
	return &WeaviateStore{client: client, className: className, embedder: embedder}
}

func whereFilter(f Filter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	add := func(path, value string) {
		if value == "" {
			return
		}
		operands = append(operands, filters.Where().
			WithPath([]string{path}).
			WithOperator(filters.Equal).
			WithValueString(value))
	}
	add(propOwner, f.Owner)
	add(propThreadID, f.ThreadID)
	add(propContentType, f.ContentType)
	add(propDomain, f.Domain)

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}
}

// Search queries Weaviate for the topK nearest documents satisfying filter.
func (s *WeaviateStore) Search(ctx context.Context, query string, filter Filter, topK int) ([]models.RetrievedDocument, error) {
	if topK <= 0 {
		return nil, nil
	}
	fields := []graphql.Field{
		{Name: propDocID},
		{Name: propSource},
		{Name: propContent},
		{Name: propOwner},
		{Name: propThreadID},
		{Name: propContentType},
		{Name: propDomain},
		{Name: "_additional { id certainty }"},
	}

	get := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithLimit(topK)
	if where := whereFilter(filter); where != nil {
		get = get.WithWhere(where)
	}
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		get = get.WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vec))
	} else {
		get = get.WithNearText(s.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query}))
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, ok := data[s.className].([]interface{})
	if !ok || len(objects) == 0 {
		return nil, nil
	}

	out := make([]models.RetrievedDocument, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		doc := models.RetrievedDocument{
			ID:      getString(m, propDocID),
			Source:  getString(m, propSource),
			Content: getString(m, propContent),
			Tags: models.Tags{
				Owner:       getString(m, propOwner),
				ThreadID:    getString(m, propThreadID),
				ContentType: getString(m, propContentType),
				Domain:      getString(m, propDomain),
			},
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if doc.ID == "" {
				doc.ID = getString(additional, "id")
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				doc.Score = certainty
			}
		}
		out = append(out, doc)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
