package embedding

import (
	"fmt"
)

// NewModel creates an Embedding client for the given provider.
//
// provider: one of "openai", "gemini", "ollama".
// model: the provider-specific model name.
// apiKey: the API key (unused by ollama).
// baseURL: the service base URL (only used by ollama; empty means local).
func NewModel(provider, model, apiKey, baseURL string) (Embedding, error) {
	switch provider {
	case "gemini":
		return NewGoogleModel(model, apiKey)
	case "openai":
		return NewOpenAIModel(model, apiKey)
	case "ollama":
		return NewOllamaModel(model, baseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
