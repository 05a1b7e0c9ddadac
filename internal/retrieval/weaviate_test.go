package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeaviateStore_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/graphql") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(body, &payload)
		gotQuery = payload.Query
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"Get":{"Document":[
			{"docId":"d1","source":"faq.md","content":"Answer one","owner":"","threadId":"","contentType":"doc","domain":"sales","_additional":{"id":"uuid-1","certainty":0.91}},
			{"docId":"","source":"faq2.md","content":"Answer two","contentType":"doc","domain":"sales","_additional":{"id":"uuid-2","certainty":0.80}}
		]}}}`)
	}))
	defer srv.Close()

	client, err := NewWeaviateClient("http", strings.TrimPrefix(srv.URL, "http://"), "")
	require.NoError(t, err)
	store := NewWeaviateStore(client, "Document", nil)

	docs, err := store.Search(context.Background(), "discount policy", Filter{ContentType: "doc", Domain: "sales"}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d1", docs[0].ID)
	assert.InDelta(t, 0.91, docs[0].Score, 1e-9)
	assert.Equal(t, "sales", docs[0].Tags.Domain)
	assert.Equal(t, "uuid-2", docs[1].ID, "falls back to the object id")

	assert.Contains(t, gotQuery, "nearText")
	assert.Contains(t, gotQuery, "contentType")
	assert.Contains(t, gotQuery, "And")
}

func TestWeaviateStore_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"Get":{"Document":[]}}}`)
	}))
	defer srv.Close()

	client, err := NewWeaviateClient("http", strings.TrimPrefix(srv.URL, "http://"), "")
	require.NoError(t, err)
	docs, err := NewWeaviateStore(client, "Document", nil).Search(context.Background(), "q", Filter{}, 5)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestWhereFilter(t *testing.T) {
	assert.Nil(t, whereFilter(Filter{}))
	assert.NotNil(t, whereFilter(Filter{Owner: "u"}))
	assert.NotNil(t, whereFilter(Filter{Owner: "u", ContentType: "data"}))
}
