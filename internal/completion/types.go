// Package completion implements the completion driver: it takes a decided
// route, materializes the chosen backend, forwards an OpenAI-compatible
// chat-completion call, and performs the single cross-tier availability
// retry when the request's optimization target is availability.
package completion

// ChatMessage is the wire shape of one chat message, passed through to the
// backend unchanged.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PassthroughParams are the generation parameters forwarded verbatim to
// whichever backend is chosen.
type PassthroughParams struct {
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Usage mirrors the OpenAI-compatible token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the backend-agnostic result of one completion call.
type Response struct {
	Content      string         `json:"content"`
	FinishReason string         `json:"finish_reason"`
	Usage        Usage          `json:"usage"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
