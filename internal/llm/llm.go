package llm

import (
	"context"
	"fmt"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLM is the interface every chat model client implements.
type LLM interface {
	// Generate produces a completion for the given conversation. The last
	// message is the current user turn; earlier messages are history.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// NewClient creates an LLM client for the given provider.
func NewClient(provider, model, apiKey string) (LLM, error) {
	switch provider {
	case "gemini":
		return NewGemini(context.Background(), model, apiKey)
	case "openai":
		return NewOpenAI(model, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
