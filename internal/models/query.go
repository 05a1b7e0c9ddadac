package models

import (
	"fmt"
	"strings"
)

// ChatRequest is one user turn submitted for answering.
type ChatRequest struct {
	ThreadID  string `json:"thread_id,omitempty"`
	UserID    string `json:"user_id"`
	Mode      string `json:"mode,omitempty"`       // interaction mode; unknown or empty means plain chat
	Message   string `json:"message"`
	ModelTier string `json:"model_tier,omitempty"` // e.g. "GPT-3" selects the fast model
	Scope     string `json:"scope,omitempty"`      // domain filter for document modes; "all" disables it
}

// Validate ensures the request has the required fields and normalizes whitespace.
// Returns an error if the message or user id is empty.
func (r *ChatRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Mode = strings.TrimSpace(r.Mode)
	r.Scope = strings.TrimSpace(r.Scope)
	if r.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if r.UserID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	return nil
}

// Key returns the thread key of the request.
func (r *ChatRequest) Key() ThreadKey {
	return ThreadKey{ThreadID: r.ThreadID, UserID: r.UserID}
}
