package models

// Message is a role-tagged entry of a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-neutral input of a completion call.
type CompletionRequest struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	Temperature     float32   `json:"temperature,omitempty"`
	MaxTokens       int       `json:"max_tokens,omitempty"`
	PresencePenalty float32   `json:"presence_penalty,omitempty"`
	// JSON asks the provider for a JSON object reply.
	JSON bool `json:"json,omitempty"`
}
