package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/embedding"
	"github.com/hyperjump/groundchat/internal/keyword"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/vector"
)

// minCandidates is the per-side candidate pool fetched before fusion.
const minCandidates = 50

// LocalStore is an in-process hybrid backend: a Bleve keyword index that also holds
// document tags, plus an in-memory vector index. Scores are fused by weight.
type LocalStore struct {
	keyword        keyword.KeywordIndex
	vectors        vector.VectorIndex
	embedder       embedding.Embedder
	keywordWeight  float64
	semanticWeight float64
	logger         *zap.Logger
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LocalOption {
	return func(s *LocalStore) {
		s.logger = logger
	}
}

// WithWeights sets the keyword and semantic fusion weights.
func WithWeights(keywordWeight, semanticWeight float64) LocalOption {
	return func(s *LocalStore) {
		s.keywordWeight = keywordWeight
		s.semanticWeight = semanticWeight
	}
}

// NewLocalStore creates a hybrid store over the given indices.
func NewLocalStore(kw keyword.KeywordIndex, vec vector.VectorIndex, embedder embedding.Embedder, opts ...LocalOption) *LocalStore {
	s := &LocalStore{
		keyword:        kw,
		vectors:        vec,
		embedder:       embedder,
		keywordWeight:  0.3,
		semanticWeight: 0.7,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add indexes documents in both indices, replacing earlier versions with the same id.
func (s *LocalStore) Add(ctx context.Context, docs []models.DocumentInput) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Source + "\n" + d.Content
		ids[i] = d.ID
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if err := s.keyword.IndexBatch(ctx, docs); err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}
	if err := s.vectors.Upsert(ctx, ids, vecs); err != nil {
		return fmt.Errorf("failed to store vectors: %w", err)
	}
	return nil
}

// Delete removes a document from both indices.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := s.keyword.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	return s.vectors.Remove(ctx, []string{id})
}

// Search runs keyword and vector search under filter, fuses the scores and returns
// the topK documents.
func (s *LocalStore) Search(ctx context.Context, query string, filter Filter, topK int) ([]models.RetrievedDocument, error) {
	if topK <= 0 {
		return nil, nil
	}
	candidates := topK * 3
	if candidates < minCandidates {
		candidates = minCandidates
	}

	kwResults, err := s.keyword.Search(ctx, query, candidates, &keyword.SearchOptions{Filter: filter.fields(), SourceBoost: 2})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	var vecResults []*vector.VectorResult
	if s.vectors.Size() > 0 {
		qvec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		allowed, err := s.keyword.MatchingIDs(ctx, filter.fields())
		if err != nil {
			return nil, fmt.Errorf("resolve filter: %w", err)
		}
		var admit vector.Filter
		if allowed != nil {
			admit = func(id string) bool {
				_, ok := allowed[id]
				return ok
			}
		}
		vecResults, err = s.vectors.Search(ctx, qvec, candidates, admit)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
	}

	fused := Fuse(NormalizeKeywordScores(kwResults), NormalizeSemanticScores(vecResults), s.keywordWeight, s.semanticWeight)
	if len(fused) == 0 {
		return nil, nil
	}

	known := make(map[string]models.DocumentInput, len(kwResults))
	for _, r := range kwResults {
		known[r.ID] = r.Document
	}
	var missing []string
	for _, f := range fused {
		if _, ok := known[f.DocumentID]; !ok {
			missing = append(missing, f.DocumentID)
		}
	}
	if len(missing) > 0 {
		found, err := s.keyword.Lookup(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("lookup documents: %w", err)
		}
		for id, d := range found {
			known[id] = d
		}
	}

	out := make([]models.RetrievedDocument, 0, topK)
	for _, f := range fused {
		if f.Score <= 0 {
			continue
		}
		d, ok := known[f.DocumentID]
		if !ok || !filter.Matches(d.Tags) {
			s.logger.Debug("skipping vector hit without stored document", zap.String("id", f.DocumentID))
			continue
		}
		out = append(out, models.RetrievedDocument{
			ID:      d.ID,
			Source:  d.Source,
			Content: d.Content,
			Score:   f.Score,
			Tags:    d.Tags,
		})
		if len(out) == topK {
			break
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (s *LocalStore) Count() (uint64, error) {
	return s.keyword.DocCount()
}

// Save persists the vector index to path. The keyword index persists itself.
func (s *LocalStore) Save(path string) error {
	return s.vectors.Save(path)
}

// Close releases both indices.
func (s *LocalStore) Close() error {
	kerr := s.keyword.Close()
	verr := s.vectors.Close()
	if kerr != nil {
		return kerr
	}
	return verr
}
