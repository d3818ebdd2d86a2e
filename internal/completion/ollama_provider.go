package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
	"routegate/internal/router"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// ollamaProvider speaks Ollama's /api/chat wire format: POST
// {base_url}/api/chat with {model, messages, options:{temperature},
// stream:false}, reading message.content back out of the response.
type ollamaProvider struct {
	model   string
	baseURL string
	http    *http.Client
}

func newOllamaProvider(desc router.ModelDescriptor, client *http.Client) *ollamaProvider {
	baseURL := desc.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &ollamaProvider{model: desc.Name, baseURL: baseURL, http: client}
}

func (p *ollamaProvider) Complete(ctx context.Context, messages []ChatMessage, params PassthroughParams) (*Response, error) {
	reqBody := map[string]any{
		"model":    p.model,
		"messages": messages,
		"options": map[string]any{
			"temperature": params.Temperature,
		},
		"stream": false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to marshal ollama chat request")
	}

	endpoint := p.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to build ollama chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logging.CompletionLogger.Debug("POST %s model=%s", endpoint, p.model)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, gwerrors.NewUpstreamError(err, fmt.Sprintf("request to ollama model %s failed: %v", p.model, err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.NewUpstreamError(err, "failed to read ollama response body", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, gwerrors.NewUpstreamError(
			fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(respBody)),
			fmt.Sprintf("ollama backend %s returned status %d", p.model, resp.StatusCode),
			resp.StatusCode,
		)
	}

	var parsed struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Done            bool   `json:"done"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, gwerrors.NewUpstreamError(err, "failed to decode ollama response", resp.StatusCode)
	}

	finish := parsed.DoneReason
	if finish == "" && parsed.Done {
		finish = "stop"
	}

	return &Response{
		Content:      parsed.Message.Content,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}
