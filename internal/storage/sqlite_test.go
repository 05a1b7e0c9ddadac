package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/groundchat/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndGetRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := models.ThreadKey{ThreadID: "t1", UserID: "u1"}

	for i := 0; i < 5; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		turn := &models.Turn{Role: role, Content: fmt.Sprintf("m%d", i)}
		if err := store.Append(ctx, key, turn); err != nil {
			t.Fatal(err)
		}
		if turn.ID == "" || turn.CreatedAt.IsZero() {
			t.Errorf("turn %d: id and created_at should be filled", i)
		}
	}

	got, err := store.GetRecent(ctx, key, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m2", "m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("turn %d: got %q, want %q", i, got[i].Content, w)
		}
	}
	if got[1].Role != models.RoleAssistant {
		t.Errorf("role not preserved: %s", got[1].Role)
	}

	all, err := store.GetRecent(ctx, key, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("got %d turns, want 5", len(all))
	}

	n, err := store.CountTurns(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("CountTurns = %d, want 5", n)
	}
}

func TestSQLiteStore_SnapshotPersisted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := models.ThreadKey{ThreadID: "t1", UserID: "u1"}

	if err := store.Append(ctx, key, &models.Turn{Role: models.RoleAssistant, Content: "a", Snapshot: "[1] ctx"}); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetRecent(ctx, key, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Snapshot != "[1] ctx" {
		t.Errorf("snapshot = %q", got[0].Snapshot)
	}
}

func TestSQLiteStore_ThreadIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, models.ThreadKey{ThreadID: "t1", UserID: "alice"}, &models.Turn{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	_, err := store.GetRecent(ctx, models.ThreadKey{ThreadID: "t1", UserID: "bob"}, 10)
	if !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("expected ErrThreadNotFound for another owner, got %v", err)
	}

	_, err = store.GetRecent(ctx, models.ThreadKey{ThreadID: "missing", UserID: "alice"}, 10)
	if !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestSQLiteStore_ListThreads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Append(ctx, models.ThreadKey{ThreadID: id, UserID: "u1"}, &models.Turn{Role: models.RoleUser, Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Append(ctx, models.ThreadKey{ThreadID: "c", UserID: "u2"}, &models.Turn{Role: models.RoleUser, Content: "x"}); err != nil {
		t.Fatal(err)
	}

	threads, err := store.ListThreads(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 {
		t.Errorf("got %d threads, want 2", len(threads))
	}

	total, err := store.CountThreads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("CountThreads = %d, want 3", total)
	}
}

func TestSQLiteStore_AppendRequiresKey(t *testing.T) {
	store := newTestStore(t)
	if err := store.Append(context.Background(), models.ThreadKey{UserID: "u1"}, &models.Turn{Content: "x"}); err == nil {
		t.Error("expected error for empty thread id")
	}
}

func TestSQLiteStore_AppendIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := models.ThreadKey{ThreadID: "t1", UserID: "u1"}

	first := &models.Turn{Role: models.RoleUser, Content: "q1"}
	if err := store.Append(ctx, key, first, &models.Turn{Role: models.RoleAssistant, Content: "a1"}); err != nil {
		t.Fatal(err)
	}

	// The assistant turn reuses an existing id, so its insert fails after the user turn's.
	err := store.Append(ctx, key,
		&models.Turn{Role: models.RoleUser, Content: "q2"},
		&models.Turn{ID: first.ID, Role: models.RoleAssistant, Content: "a2"})
	if err == nil {
		t.Fatal("expected duplicate id to fail the append")
	}

	n, err := store.CountTurns(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountTurns = %d, want 2 (failed exchange must leave nothing)", n)
	}
	got, err := store.GetRecent(ctx, key, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got[len(got)-1].Content != "a1" {
		t.Errorf("last turn = %q, want a1", got[len(got)-1].Content)
	}
}

func TestSQLiteStore_AppendFailureDoesNotCreateThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := models.ThreadKey{ThreadID: "fresh", UserID: "u1"}

	err := store.Append(ctx, key,
		&models.Turn{ID: "dup", Role: models.RoleUser, Content: "q"},
		&models.Turn{ID: "dup", Role: models.RoleAssistant, Content: "a"})
	if err == nil {
		t.Fatal("expected duplicate id to fail the append")
	}
	if _, err := store.GetRecent(ctx, key, 10); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("GetRecent err = %v, want ErrThreadNotFound", err)
	}
}
