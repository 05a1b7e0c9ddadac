package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/groundchat/internal/embedding"
	"github.com/hyperjump/groundchat/internal/keyword"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/vector"
)

func newLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	kw, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	vec, err := vector.NewMemoryIndex(128)
	require.NoError(t, err)
	s := NewLocalStore(kw, vec, embedding.NewMockEmbedder(128))
	t.Cleanup(func() { _ = s.Close() })

	docs := []models.DocumentInput{
		{ID: "hr-1", Source: "leave-policy.pdf", Content: "Paid leave is granted after six months of service.",
			Tags: models.Tags{ContentType: "doc", Domain: "hr"}},
		{ID: "sales-1", Source: "pricing-faq.md", Content: "Volume discounts require approval from the sales lead.",
			Tags: models.Tags{ContentType: "doc", Domain: "sales"}},
		{ID: "sales-2", Source: "returns-faq.md", Content: "Returns are accepted within thirty days with a receipt.",
			Tags: models.Tags{ContentType: "doc", Domain: "sales"}},
		{ID: "data-1", Source: "q1.csv", Content: "Revenue for Q1 was 120 million.",
			Tags: models.Tags{Owner: "alice", ThreadID: "t1", ContentType: "data"}},
		{ID: "data-2", Source: "q1.csv", Content: "Revenue for Q1 was 95 million.",
			Tags: models.Tags{Owner: "bob", ThreadID: "t9", ContentType: "data"}},
	}
	require.NoError(t, s.Add(context.Background(), docs))
	return s
}

func TestLocalStore_SearchRespectsFilter(t *testing.T) {
	s := newLocalStore(t)
	ctx := context.Background()

	docs, err := s.Search(ctx, "revenue Q1", Filter{Owner: "alice", ThreadID: "t1", ContentType: "data"}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "data-1", docs[0].ID)
	assert.Equal(t, "q1.csv", docs[0].Source)
	assert.Equal(t, "alice", docs[0].Tags.Owner)

	docs, err = s.Search(ctx, "discounts approval", Filter{ContentType: "doc", Domain: "sales"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "sales-1", docs[0].ID)
	for _, d := range docs {
		assert.Equal(t, "sales", d.Tags.Domain)
	}
}

func TestLocalStore_NoMatchIsEmpty(t *testing.T) {
	s := newLocalStore(t)
	docs, err := s.Search(context.Background(), "revenue", Filter{Owner: "carol", ContentType: "data"}, 10)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestLocalStore_TopKBound(t *testing.T) {
	s := newLocalStore(t)
	docs, err := s.Search(context.Background(), "faq sales discounts returns", Filter{ContentType: "doc"}, 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestLocalStore_DeleteAndPersist(t *testing.T) {
	s := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, "hr-1"))

	docs, err := s.Search(ctx, "paid leave", Filter{Domain: "hr"}, 5)
	require.NoError(t, err)
	assert.Nil(t, docs)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, s.Save(path))
	loaded, _ := vector.NewMemoryIndex(128)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 4, loaded.Size())
}

func TestFilter_Matches(t *testing.T) {
	tags := models.Tags{Owner: "u", ThreadID: "t", ContentType: "data"}
	assert.True(t, Filter{}.Matches(tags))
	assert.True(t, Filter{Owner: "u", ContentType: "data"}.Matches(tags))
	assert.False(t, Filter{Owner: "x"}.Matches(tags))
	assert.False(t, Filter{Domain: "sales"}.Matches(tags))
	assert.True(t, Filter{}.Empty())
}
