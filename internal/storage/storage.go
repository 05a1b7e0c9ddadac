// Package storage defines the persistence interface for conversation threads and turns.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/groundchat/internal/models"
)

// ErrThreadNotFound is returned when a thread does not exist for the given owner.
var ErrThreadNotFound = errors.New("thread not found")

// HistoryStore persists conversation turns. Threads are keyed by (thread id, user id)
// and are created implicitly by the first appended turn.
type HistoryStore interface {
	// GetRecent returns at most limit of the most recent turns of a thread in
	// chronological order. A missing thread yields ErrThreadNotFound.
	GetRecent(ctx context.Context, key models.ThreadKey, limit int) ([]models.Turn, error)
	// Append stores turns in order in a single transaction, creating the thread if
	// needed. Either every turn is stored or none is.
	Append(ctx context.Context, key models.ThreadKey, turns ...*models.Turn) error

	ListThreads(ctx context.Context, userID string) ([]models.Thread, error)
	CountTurns(ctx context.Context, key models.ThreadKey) (int64, error)

	Close() error
}
