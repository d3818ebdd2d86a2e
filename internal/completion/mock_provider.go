package completion

import (
	"context"
	"strings"

	"routegate/internal/router"
)

// mockProvider is a deterministic in-memory responder for tests. It never
// makes a network call.
type mockProvider struct {
	model string
}

func newMockProvider(desc router.ModelDescriptor) *mockProvider {
	return &mockProvider{model: desc.WireModel()}
}

func (p *mockProvider) Complete(ctx context.Context, messages []ChatMessage, params PassthroughParams) (*Response, error) {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}

	return &Response{
		Content:      "mock response from " + p.model + " to: " + strings.TrimSpace(last),
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}
