package models

import "time"

// Role identifies the author of a conversation turn or completion message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ThreadKey identifies a conversation thread. Threads are keyed by (thread id, owning user id).
type ThreadKey struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
}

// Thread is a conversation owned by a single user.
type Thread struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Turn is one message in a thread. Snapshot holds the grounding text an
// assistant turn was generated from; it is empty for user turns and ungrounded answers.
type Turn struct {
	ID        string    `json:"id" db:"id"`
	ThreadID  string    `json:"thread_id" db:"thread_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Snapshot  string    `json:"snapshot,omitempty" db:"snapshot"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
