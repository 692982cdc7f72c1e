// Package llm defines the model provider interface and related types.
package llm

import (
	"context"
)

// Role constants for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a provider's Complete() call.
type CompletionRequest struct {
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
	Temperature  float64 // 0 means provider default
	Model        string  // override provider default if set
}

// CompletionResponse is returned by Complete().
type CompletionResponse struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is the core abstraction for language model backends.
// Implementations: AnthropicProvider, (future) OpenAIProvider.
type Provider interface {
	// Complete sends a completion request and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the current model identifier string.
	ModelID() string

	// MaxTokens returns the provider's default max output token limit.
	MaxTokens() int
}
