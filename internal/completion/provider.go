package completion

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"routegate/internal/router"
)

// Provider is the one-operation interface every backend adapter implements.
// Tagged variants are registered by provider prefix string, not by Go type
// switch, so adding a backend means adding a case to NewProvider.
type Provider interface {
	Complete(ctx context.Context, messages []ChatMessage, params PassthroughParams) (*Response, error)
}

// ProviderFactory builds a Provider from a materialized descriptor. Exposed
// as a func type (rather than a hardcoded call to NewProvider) so the
// Completion Driver can be given a stub factory in tests.
type ProviderFactory func(desc router.ModelDescriptor) (Provider, error)

const defaultHTTPTimeout = 60 * time.Second

// NewProvider is the adapter registry: it inspects the descriptor's
// provider prefix and returns the matching backend client. Absent prefix
// defaults to the OpenAI-compatible adapter.
func NewProvider(desc router.ModelDescriptor) (Provider, error) {
	client := &http.Client{Timeout: defaultHTTPTimeout}

	switch desc.Provider {
	case "", "openai", "openrouter", "deepseek", "kimi", "glm", "minimax":
		return newOpenAIProvider(desc, client), nil
	case "ollama":
		return newOllamaProvider(desc, client), nil
	case "mock":
		return newMockProvider(desc), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", desc.Provider)
	}
}
