package ai

import (
	"context"
	"fmt"
)

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string
	Content string
}

// ChatConfig holds configuration for chat completions
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatProvider defines the interface for text-to-text chat completions
// (used for transcript rewriting)
type ChatProvider interface {
	// ChatCompletion sends a conversation to the LLM and returns the text response
	ChatCompletion(ctx context.Context, messages []ChatMessage, config ChatConfig) (string, error)
}

// ProviderError is returned by chat providers when the remote service
// answers with a non-success status. It keeps the status code and body so
// callers can log them verbatim.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("chat completion failed: status %d: %s", e.StatusCode, e.Body)
}
