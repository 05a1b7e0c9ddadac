package chat

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/groundchat/internal/history"
	"github.com/hyperjump/groundchat/internal/llm"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/retrieval"
	"github.com/hyperjump/groundchat/internal/storage"
	"github.com/hyperjump/groundchat/internal/web"
)

// fakeProvider streams fixed deltas and answers Complete calls from a script.
type fakeProvider struct {
	mu           sync.Mutex
	deltas       []string
	streamErr    error
	recvErr      error
	hang         bool
	completeErr  error
	completeText string
	streamReqs   []models.CompletionRequest
	completeReqs []models.CompletionRequest
}

func (p *fakeProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completeReqs = append(p.completeReqs, req)
	return p.completeText, p.completeErr
}

func (p *fakeProvider) Stream(ctx context.Context, req models.CompletionRequest) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamReqs = append(p.streamReqs, req)
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return &fakeStream{ctx: ctx, deltas: p.deltas, err: p.recvErr, hang: p.hang}, nil
}

func (p *fakeProvider) lastStream(t *testing.T) models.CompletionRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.streamReqs)
	return p.streamReqs[len(p.streamReqs)-1]
}

type fakeStream struct {
	ctx    context.Context
	deltas []string
	i      int
	err    error
	hang   bool
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.i < len(s.deltas) {
		s.i++
		return s.deltas[s.i-1], nil
	}
	if s.hang {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeRetriever struct {
	mu      sync.Mutex
	docs    []models.RetrievedDocument
	err     error
	queries []string
	filters []retrieval.Filter
}

func (r *fakeRetriever) Search(ctx context.Context, query string, filter retrieval.Filter, topK int) ([]models.RetrievedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	r.filters = append(r.filters, filter)
	return r.docs, r.err
}

type fakeResearcher struct {
	mu        sync.Mutex
	pages     []models.WebPage
	err       error
	queries   []string
	freshness []web.Freshness
}

func (r *fakeResearcher) Research(ctx context.Context, query string, freshness web.Freshness) ([]models.WebPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	r.freshness = append(r.freshness, freshness)
	return r.pages, r.err
}

// failingStore accepts reads but rejects every append.
type failingStore struct {
	storage.HistoryStore
}

func (failingStore) Append(ctx context.Context, key models.ThreadKey, turns ...*models.Turn) error {
	return errors.New("disk full")
}

func (failingStore) GetRecent(ctx context.Context, key models.ThreadKey, limit int) ([]models.Turn, error) {
	return nil, storage.ErrThreadNotFound
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHistory(t *testing.T) (*history.Manager, *storage.SQLiteStore) {
	t.Helper()
	store := newTestStore(t)
	return history.NewManager(store), store
}

// collect is a Sink that records deltas.
type collect struct {
	mu     sync.Mutex
	deltas []string
	err    error
}

func (c *collect) Delta(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.deltas = append(c.deltas, text)
	return nil
}
