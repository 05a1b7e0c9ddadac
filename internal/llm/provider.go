// Package llm defines the completion provider used by the chat pipeline and its
// OpenAI-compatible implementation.
package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/groundchat/internal/models"
)

// Provider produces chat completions.
type Provider interface {
	// Complete returns the full reply of a non-streaming completion.
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
	// Stream starts a streaming completion. The caller must Close the stream.
	Stream(ctx context.Context, req models.CompletionRequest) (Stream, error)
}

// Stream yields completion deltas. Recv returns io.EOF after the last delta.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// StatusError is a provider failure carrying the upstream HTTP status.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the upstream status carried by err, or 0 if there is none.
func HTTPStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) && se.Status >= http.StatusBadRequest {
		return se.Status
	}
	return 0
}
