package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/groundchat/internal/models"
)

func seedIndex(t *testing.T, idx *BleveIndex) {
	t.Helper()
	docs := []models.DocumentInput{
		{ID: "d1", Source: "leave-policy.pdf", Content: "Employees receive paid leave after six months.",
			Tags: models.Tags{ContentType: "doc", Domain: "hr"}},
		{ID: "d2", Source: "sales-faq.md", Content: "Discounts on paid plans are approved by the sales lead.",
			Tags: models.Tags{ContentType: "doc", Domain: "sales"}},
		{ID: "d3", Source: "upload.csv", Content: "Paid invoices for March.",
			Tags: models.Tags{Owner: "u1", ThreadID: "t1", ContentType: "data"}},
	}
	if err := idx.IndexBatch(context.Background(), docs); err != nil {
		t.Fatalf("IndexBatch: %v", err)
	}
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	seedIndex(t, idx)

	results, err := idx.Search(context.Background(), "leave", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "d1" {
		t.Fatalf("expected d1, got %+v", results)
	}
	if results[0].Document.Source != "leave-policy.pdf" || results[0].Document.Tags.Domain != "hr" {
		t.Errorf("stored fields not returned: %+v", results[0].Document)
	}
}

func TestBleveIndex_SearchFilter(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	seedIndex(t, idx)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter map[string]string
		want   []string
	}{
		{"no filter", nil, []string{"d1", "d2", "d3"}},
		{"content type doc", map[string]string{FieldContentType: "doc"}, []string{"d1", "d2"}},
		{"doc in sales", map[string]string{FieldContentType: "doc", FieldDomain: "sales"}, []string{"d2"}},
		{"owner and thread", map[string]string{FieldOwner: "u1", FieldThreadID: "t1", FieldContentType: "data"}, []string{"d3"}},
		{"other owner", map[string]string{FieldOwner: "u2", FieldContentType: "data"}, nil},
		{"empty value ignored", map[string]string{FieldDomain: "", FieldContentType: "data"}, []string{"d3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := idx.Search(ctx, "paid", 10, &SearchOptions{Filter: tt.filter})
			if err != nil {
				t.Fatal(err)
			}
			got := map[string]bool{}
			for _, r := range results {
				got[r.ID] = true
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("missing %s in %v", id, got)
				}
			}
		})
	}
}

func TestBleveIndex_MatchingIDsAndLookup(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	seedIndex(t, idx)
	ctx := context.Background()

	all, err := idx.MatchingIDs(ctx, nil)
	if err != nil || all != nil {
		t.Errorf("empty filter should admit everything (nil), got %v, %v", all, err)
	}
	docs, err := idx.MatchingIDs(ctx, map[string]string{FieldContentType: "doc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d ids, want 2", len(docs))
	}

	found, err := idx.Lookup(ctx, []string{"d2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found["d2"].Content == "" {
		t.Errorf("lookup: %+v", found)
	}
}

func TestBleveIndex_ReopenAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	seedIndex(t, idx)
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	n, _ := idx.DocCount()
	if n != 3 {
		t.Errorf("DocCount after reopen = %d, want 3", n)
	}
	if err := idx.Delete(context.Background(), "d1"); err != nil {
		t.Fatal(err)
	}
	n, _ = idx.DocCount()
	if n != 2 {
		t.Errorf("DocCount after delete = %d, want 2", n)
	}
	if err := idx.Index(context.Background(), models.DocumentInput{}); err == nil {
		t.Error("expected error for missing id")
	}
}
