// Package llm calls the chat-completion provider that generates the
// assistant's replies.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message is one turn passed to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces a reply from a system persona and a bounded conversation
// history. The final history entry carries the current prompt; there is no
// separate "new message" argument.
type Client interface {
	Complete(ctx context.Context, system string, history []Message) (string, error)
}

// ErrEmptyCompletion is returned when the provider answers 200 but the body
// carries no usable content.
var ErrEmptyCompletion = errors.New("completion contained no content")

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Code, e.Body)
}

// MalformedError is returned when the provider body cannot be parsed.
type MalformedError struct {
	Cause error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed provider response: %v", e.Cause)
}

func (e *MalformedError) Unwrap() error { return e.Cause }
