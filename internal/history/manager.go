// Package history loads bounded windows of conversation threads and records exchanges.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/storage"
)

// Manager reads and appends thread turns through a HistoryStore.
// Appends to the same thread are serialized.
type Manager struct {
	store  storage.HistoryStore
	logger *zap.Logger
	locks  *keyedMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for load and append failures.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a history manager backed by store.
func NewManager(store storage.HistoryStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: zap.NewNop(),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadWindow returns the last maxTurns turns of the thread in chronological order.
// A missing thread or a store failure yields an empty window; failures are logged.
func (m *Manager) LoadWindow(ctx context.Context, key models.ThreadKey, maxTurns int) []models.Turn {
	if key.ThreadID == "" || maxTurns <= 0 {
		return []models.Turn{}
	}
	turns, err := m.store.GetRecent(ctx, key, maxTurns)
	if errors.Is(err, storage.ErrThreadNotFound) {
		return []models.Turn{}
	}
	if err != nil {
		m.logger.Warn("history load failed",
			zap.String("thread_id", key.ThreadID),
			zap.Error(err))
		return []models.Turn{}
	}
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns
}

// AppendExchange stores the user turn and the assistant turn atomically while
// holding the thread's lock, so exchanges on one thread never interleave and a
// failed write leaves no half exchange behind.
func (m *Manager) AppendExchange(ctx context.Context, key models.ThreadKey, user, assistant *models.Turn) error {
	if user == nil || assistant == nil {
		return fmt.Errorf("append exchange: nil turn")
	}
	unlock := m.locks.lock(key)
	defer unlock()

	if err := m.store.Append(ctx, key, user, assistant); err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

// Threads lists the threads owned by userID.
func (m *Manager) Threads(ctx context.Context, userID string) ([]models.Thread, error) {
	return m.store.ListThreads(ctx, userID)
}

// keyedMutex hands out one mutex per thread key and drops it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.ThreadKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[models.ThreadKey]*refMutex)}
}

func (k *keyedMutex) lock(key models.ThreadKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
