// Package storage provides the SQLite implementation of HistoryStore.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/groundchat/internal/models"
)

// SQLiteStore implements HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_threads_user_updated ON threads(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		thread_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		snapshot TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (thread_id, user_id) REFERENCES threads(id, user_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_turns_thread_seq ON turns(thread_id, user_id, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// Append inserts turns in order in one transaction, creating their thread on first
// use. Each turn's ID, ThreadID, UserID and CreatedAt are filled in when empty.
func (s *SQLiteStore) Append(ctx context.Context, key models.ThreadKey, turns ...*models.Turn) error {
	if key.ThreadID == "" || key.UserID == "" {
		return fmt.Errorf("append: thread id and user id are required")
	}
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, turn := range turns {
		if turn == nil {
			return fmt.Errorf("append: nil turn")
		}
		if turn.ID == "" {
			turn.ID = uuid.New().String()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		turn.ThreadID = key.ThreadID
		turn.UserID = key.UserID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	last := turns[len(turns)-1].CreatedAt
	_, err = tx.ExecContext(ctx,
		`INSERT INTO threads (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id, user_id) DO UPDATE SET updated_at = excluded.updated_at`,
		key.ThreadID, key.UserID, turns[0].CreatedAt, last,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	for _, turn := range turns {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO turns (id, thread_id, user_id, role, content, snapshot, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			turn.ID, key.ThreadID, key.UserID, string(turn.Role), turn.Content, turn.Snapshot, turn.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s turn: %w", turn.Role, err)
		}
	}

	return tx.Commit()
}

// GetRecent returns the last limit turns of the thread, oldest first.
func (s *SQLiteStore) GetRecent(ctx context.Context, key models.ThreadKey, limit int) ([]models.Turn, error) {
	exists, err := s.threadExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrThreadNotFound
	}
	if limit <= 0 {
		return []models.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, user_id, role, content, snapshot, created_at FROM (
			SELECT seq, id, thread_id, user_id, role, content, snapshot, created_at
			FROM turns WHERE thread_id = ? AND user_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`,
		key.ThreadID, key.UserID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]models.Turn, 0, limit)
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.ThreadID, &t.UserID, &role, &t.Content, &t.Snapshot, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = models.Role(role)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ListThreads returns the user's threads, most recently updated first.
func (s *SQLiteStore) ListThreads(ctx context.Context, userID string) ([]models.Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM threads
		 WHERE user_id = ? ORDER BY updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var th models.Thread
		if err := rows.Scan(&th.ID, &th.UserID, &th.CreatedAt, &th.UpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, th)
	}
	return threads, rows.Err()
}

// CountTurns returns the number of turns stored for the thread.
func (s *SQLiteStore) CountTurns(ctx context.Context, key models.ThreadKey) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM turns WHERE thread_id = ? AND user_id = ?",
		key.ThreadID, key.UserID,
	).Scan(&n)
	return n, err
}

// CountThreads returns the number of threads across all users.
func (s *SQLiteStore) CountThreads(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads").Scan(&n)
	return n, err
}

func (s *SQLiteStore) threadExists(ctx context.Context, key models.ThreadKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM threads WHERE id = ? AND user_id = ?", key.ThreadID, key.UserID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up thread: %w", err)
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
