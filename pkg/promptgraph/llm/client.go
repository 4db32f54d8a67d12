// Package llm defines the streaming model service used by LLM invocation
// nodes, with a Claude CLI implementation and a scripted mock for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client streams completions from a language model.
//
// Stream returns once the request has been accepted. The returned channel
// delivers content deltas in order and is closed after a Done or Error
// chunk. Implementations must stop sending when ctx is cancelled.
type Client interface {
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// ErrEmptyPrompt indicates a request without prompt text.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Error is a failure reported by a Client.
type Error struct {
	// Op is the client operation ("stream", "start", "read").
	Op string
	// Err is the underlying error.
	Err error
	// Retryable reports whether the failure looks transient.
	Retryable bool
}

// NewError creates a client error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a client error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
