package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/retrieval"
	"github.com/hyperjump/groundchat/internal/rewrite"
	"github.com/hyperjump/groundchat/internal/storage"
	"github.com/hyperjump/groundchat/internal/web"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Prompts.AssistantName = "Helper"
	return cfg
}

type serviceFixture struct {
	svc      *Service
	provider *fakeProvider
	store    *storage.SQLiteStore
}

func newFixture(t *testing.T, p *fakeProvider, r *fakeRetriever, w *fakeResearcher) *serviceFixture {
	t.Helper()
	cfg := testConfig()
	h, store := newTestHistory(t)
	planner, err := rewrite.NewRewriter(p, cfg.LLM.FastModel, cfg.Prompts)
	require.NoError(t, err)
	deps := Deps{Provider: p, History: h, Planner: planner}
	if r != nil {
		deps.Retriever = r
	}
	if w != nil {
		deps.Researcher = w
	}
	svc, err := NewService(cfg, deps)
	require.NoError(t, err)
	return &serviceFixture{svc: svc, provider: p, store: store}
}

func leaveDocs() []models.RetrievedDocument {
	return []models.RetrievedDocument{
		{ID: "D1", Source: "handbook.pdf", Content: "Employees receive 20 days of paid leave."},
		{ID: "D2", Source: "faq.md", Content: "Unused leave carries over for one year."},
	}
}

// Scenario A: two valid documents ground the answer and the exchange is stored once.
func TestService_GroundedAnswerPersistsSnapshot(t *testing.T) {
	r := &fakeRetriever{docs: leaveDocs()}
	f := newFixture(t, &fakeProvider{deltas: []string{"20 days."}}, r, nil)
	req := &models.ChatRequest{ThreadID: "t1", UserID: "u1", Mode: "data", Message: "What is the leave policy?"}

	reply, err := f.svc.Handle(context.Background(), req, &collect{})
	require.NoError(t, err)
	assert.True(t, reply.Grounded)
	assert.Equal(t, StoreFiltered, reply.Strategy)
	assert.Equal(t, OutcomeCompleted, reply.Result.Outcome)

	require.Len(t, r.filters, 1)
	assert.Equal(t, retrieval.Filter{Owner: "u1", ThreadID: "t1", ContentType: "data"}, r.filters[0])

	sent := f.provider.lastStream(t)
	cfg := testConfig()
	assert.Contains(t, sent.Messages[0].Content, "Use only the information in the provided documents")
	user := sent.Messages[len(sent.Messages)-1].Content
	assert.Contains(t, user, "[1]. handbook.pdf")
	assert.Contains(t, user, "[2]. faq.md")
	assert.NotContains(t, user, "[3]")
	assert.InDelta(t, *cfg.Strategies.Data.Temperature, sent.Temperature, 1e-6)
	assert.InDelta(t, *cfg.Strategies.Data.PresencePenalty, sent.PresencePenalty, 1e-6)

	turns, err := f.store.GetRecent(context.Background(), req.Key(), 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, "What is the leave policy?", turns[0].Content)
	assert.Equal(t, "20 days.", turns[1].Content)
	assert.Contains(t, turns[1].Snapshot, "Employees receive 20 days of paid leave.")
	assert.Contains(t, turns[1].Snapshot, "Unused leave carries over for one year.")
}

// Scenario B: no valid documents selects the ungrounded prompt and an empty snapshot.
func TestService_UngroundedWhenNoDocuments(t *testing.T) {
	invalid := []models.RetrievedDocument{{ID: "", Source: "x", Content: "no id"}}
	f := newFixture(t, &fakeProvider{deltas: []string{"Not in the documents."}}, &fakeRetriever{docs: invalid}, nil)
	req := &models.ChatRequest{ThreadID: "t1", UserID: "u1", Mode: "data", Message: "What is the leave policy?"}

	reply, err := f.svc.Handle(context.Background(), req, &collect{})
	require.NoError(t, err)
	assert.False(t, reply.Grounded)

	sent := f.provider.lastStream(t)
	assert.Contains(t, sent.Messages[0].Content, "No document information was found")

	turns, err := f.store.GetRecent(context.Background(), req.Key(), 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "", turns[1].Snapshot)
}

func TestService_RetrievalFailureAnswersUngrounded(t *testing.T) {
	f := newFixture(t, &fakeProvider{deltas: []string{"ok"}}, &fakeRetriever{err: errors.New("index down")}, nil)
	reply, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Mode: "gpts", Message: "How do I file expenses?"}, &collect{})
	require.NoError(t, err)
	assert.False(t, reply.Grounded)
	assert.Equal(t, OutcomeCompleted, reply.Result.Outcome)
}

// Scenario C: an ambiguous web question whose rewrite fails is searched verbatim.
func TestService_WebRewriteFallbackUsesMessage(t *testing.T) {
	p := &fakeProvider{deltas: []string{"Here is the news."}, completeErr: errors.New("rewrite model down")}
	w := &fakeResearcher{pages: []models.WebPage{
		{URL: "https://news.example/a", Title: "A", Snippet: "s", MainText: "body", Status: models.PageStatusOK},
	}}
	f := newFixture(t, p, nil, w)

	reply, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Mode: "web", Message: "news"}, &collect{})
	require.NoError(t, err)
	assert.True(t, reply.Grounded)

	require.Len(t, w.queries, 1)
	assert.Equal(t, "news", w.queries[0])
	assert.Equal(t, web.FreshnessDay, w.freshness[0])
	assert.Len(t, p.completeReqs, 2, "intent analysis then rewrite")

	sent := p.lastStream(t)
	assert.Contains(t, sent.Messages[len(sent.Messages)-1].Content, "URL: [https://news.example/a](https://news.example/a)")
	assert.Equal(t, 2000, sent.MaxTokens)
}

func TestService_WebSearchFailureAnswersUngrounded(t *testing.T) {
	w := &fakeResearcher{err: errors.New("quota")}
	f := newFixture(t, &fakeProvider{deltas: []string{"x"}}, nil, w)

	reply, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Mode: "web", Message: "What happened in Tokyo today?"}, &collect{})
	require.NoError(t, err)
	assert.False(t, reply.Grounded)
	sent := f.provider.lastStream(t)
	assert.Contains(t, sent.Messages[0].Content, "no usable results")
}

func TestService_DocumentScopes(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		scope      string
		wantDomain string
	}{
		{"doc scoped to department", "doc", "hr", "hr"},
		{"doc all", "doc", ScopeAll, ""},
		{"gpts default domain", "gpts", "", "sales"},
		{"gpts all", "gpts", ScopeAll, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRetriever{docs: leaveDocs()}
			f := newFixture(t, &fakeProvider{deltas: []string{"a"}, completeText: "leave policy"}, r, nil)
			_, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Mode: tt.mode, Scope: tt.scope, Message: "What is the leave policy?"}, &collect{})
			require.NoError(t, err)
			require.Len(t, r.filters, 1)
			assert.Equal(t, tt.wantDomain, r.filters[0].Domain)
			assert.Equal(t, "doc", r.filters[0].ContentType)
			assert.Empty(t, r.filters[0].Owner)
		})
	}
}

func TestService_DocCondensesAmbiguousQuery(t *testing.T) {
	r := &fakeRetriever{docs: leaveDocs()}
	p := &fakeProvider{deltas: []string{"a"}, completeText: "paid leave policy"}
	f := newFixture(t, p, r, nil)

	_, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Mode: "doc", Message: "leave"}, &collect{})
	require.NoError(t, err)
	assert.Equal(t, []string{"paid leave policy"}, r.queries)
	assert.Equal(t, 4000, p.lastStream(t).MaxTokens)
}

func TestService_NewThreadAndHistoryWindow(t *testing.T) {
	f := newFixture(t, &fakeProvider{deltas: []string{"hi"}}, nil, nil)

	first, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Message: "hello"}, &collect{})
	require.NoError(t, err)
	require.NotEmpty(t, first.ThreadID)
	assert.Equal(t, Plain, first.Strategy)

	_, err = f.svc.Handle(context.Background(), &models.ChatRequest{ThreadID: first.ThreadID, UserID: "u1", Message: "again"}, &collect{})
	require.NoError(t, err)
	sent := f.provider.lastStream(t)
	require.Len(t, sent.Messages, 4, "system + 2 history turns + user")
	assert.Equal(t, "hello", sent.Messages[1].Content)
	assert.Equal(t, "hi", sent.Messages[2].Content)
}

func TestService_ModelTier(t *testing.T) {
	f := newFixture(t, &fakeProvider{deltas: []string{"x"}}, nil, nil)
	cfg := testConfig()

	_, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Message: "hi", ModelTier: "GPT-3"}, &collect{})
	require.NoError(t, err)
	assert.Equal(t, cfg.LLM.FastModel, f.provider.lastStream(t).Model)

	_, err = f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Message: "hi", ModelTier: "GPT-4"}, &collect{})
	require.NoError(t, err)
	assert.Equal(t, cfg.LLM.DefaultModel, f.provider.lastStream(t).Model)
}

func TestService_InvalidRequest(t *testing.T) {
	f := newFixture(t, &fakeProvider{}, nil, nil)
	_, err := f.svc.Handle(context.Background(), &models.ChatRequest{UserID: "u1", Message: "  "}, &collect{})
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidRequest, cerr.Kind)
	assert.Equal(t, http.StatusBadRequest, cerr.Status)
}
