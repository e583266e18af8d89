// Package chat defines the collaborator contract for the chat-completion
// client.
//
// The record store consumes this interface only; the HTTP implementation
// lives with the application shell. Timeouts and retries belong to that
// layer, not to the store.
package chat

import (
	"context"
	"errors"
	"time"
)

// Message is one turn of a conversation, in completion order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage carries completion metadata for the block payload's response field.
type Usage struct {
	PromptTokens     int           `json:"promptTokens"`
	CompletionTokens int           `json:"completionTokens"`
	Latency          time.Duration `json:"latency"`
}

// Result is a successful completion.
type Result struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Client generates a completion for an ordered message list. Implementations
// must honor ctx cancellation and return an error satisfying IsCanceled
// when the caller aborted.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Result, error)
}

// IsCanceled distinguishes a caller-initiated abort from a generic failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
