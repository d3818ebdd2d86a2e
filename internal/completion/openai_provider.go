package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
	"routegate/internal/router"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIProvider speaks the OpenAI-compatible chat-completions wire format.
// openrouter/deepseek/kimi/glm/minimax all front this same shape; only the
// base URL and credential differ, which the descriptor already carries.
type openAIProvider struct {
	model      string
	baseURL    string
	credential string
	http       *http.Client
}

func newOpenAIProvider(desc router.ModelDescriptor, client *http.Client) *openAIProvider {
	baseURL := desc.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	credential := desc.Credential
	if credential == "" {
		credential = os.Getenv("OPENAI_API_KEY")
	}
	return &openAIProvider{
		model:      desc.WireModel(),
		baseURL:    baseURL,
		credential: credential,
		http:       client,
	}
}

func (p *openAIProvider) Complete(ctx context.Context, messages []ChatMessage, params PassthroughParams) (*Response, error) {
	reqBody := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
		"stream":      false,
	}
	if len(params.Stop) > 0 {
		reqBody["stop"] = params.Stop
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to marshal chat-completion request")
	}

	return p.doComplete(ctx, body)
}

func (p *openAIProvider) doComplete(ctx context.Context, body []byte) (*Response, error) {
	endpoint := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to build chat-completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.credential)
	}

	logging.CompletionLogger.Debug("POST %s model=%s", endpoint, p.model)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, gwerrors.NewUpstreamError(err, fmt.Sprintf("request to %s failed: %v", p.model, err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.NewUpstreamError(err, "failed to read upstream response body", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gwerrors.NewUpstreamError(
			fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(respBody)),
			fmt.Sprintf("backend %s returned status %d", p.model, resp.StatusCode),
			resp.StatusCode,
		)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, gwerrors.NewUpstreamError(err, "failed to decode upstream response", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, gwerrors.NewUpstreamError(fmt.Errorf("no choices in response"), "backend returned an empty response", resp.StatusCode)
	}

	return &Response{
		Content:      parsed.Choices[0].Message.Content,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage:        parsed.Usage,
	}, nil
}
