// Package llm provides chat completion clients for the tutor.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("llm returned empty response")
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is one chat completion call.
type Request struct {
	Messages []Message
	// JSON asks the provider for a json_object response.
	JSON bool
	// Operation labels the call in logs and metrics ("guided_turn", "feedback").
	Operation string
}

// Client defines the interface for LLM providers.
type Client interface {
	// Complete returns the raw text content of the first choice.
	Complete(ctx context.Context, req Request) (string, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}

// Prompt builds the two-message request used by every tutor call.
func Prompt(system, user string, jsonReply bool, operation string) Request {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})
	return Request{Messages: msgs, JSON: jsonReply, Operation: operation}
}
