package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/groundchat/internal/llm"
)

// ErrorKind classifies request failures for clients.
type ErrorKind string

const (
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindCompletionFailed ErrorKind = "completion_failed"
	KindInternal         ErrorKind = "internal"
)

// Error is a request failure with the HTTP status it maps to.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// completionError wraps a provider failure. The status is the upstream status when
// known, 504 on deadline expiry and 502 otherwise.
func completionError(err error) *Error {
	status := llm.HTTPStatus(err)
	switch {
	case status != 0:
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}
	return &Error{Kind: KindCompletionFailed, Status: status, Message: "completion failed", Err: err}
}
