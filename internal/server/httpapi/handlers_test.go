package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"routegate/internal/completion"
	"routegate/internal/config"
	"routegate/internal/router"
	"routegate/internal/storage"
)

type stubDifficulty struct{ score float64 }

func (s stubDifficulty) Score(ctx context.Context, query string) (float64, error) { return s.score, nil }

func newTestRouter(t *testing.T, difficultyScore float64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	policy := &router.Policy{Difficulty: stubDifficulty{score: difficultyScore}}
	driver := &completion.Driver{Policy: policy, NewProvider: completion.NewProvider}
	return NewRouter(Deps{Driver: driver, DefaultPair: config.DefaultPairConfig{StrongModelName: "gpt-4o", WeakModelName: "gpt-4o-mini"}})
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func baseRequestBody() map[string]any {
	return map[string]any{
		"model":    "ignored",
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
		"models": map[string]any{
			"strong": map[string]string{"model": "mock/gpt-4o"},
			"weak":   map[string]string{"model": "mock/gpt-4o-mini"},
		},
	}
}

func TestCompleteChat_PerformanceMetric_RoutesStrong(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	body := baseRequestBody()
	body["optimization_metric"] = "performance"

	rec := doRequest(t, engine, http.MethodPost, "/v1/chat/completions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.RoutingDecision.ChosenTier != "strong" {
		t.Errorf("expected strong tier, got %s", resp.RoutingDecision.ChosenTier)
	}
	if resp.RoutingDecision.Basis != "optimization:performance" {
		t.Errorf("unexpected basis: %s", resp.RoutingDecision.Basis)
	}
}

func TestCompleteChat_MissingModels_Returns400(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	body := baseRequestBody()
	delete(body, "models")

	rec := doRequest(t, engine, http.MethodPost, "/v1/chat/completions", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCompleteChat_StrongEqualsWeak_Returns400(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	body := baseRequestBody()
	body["models"] = map[string]any{
		"strong": map[string]string{"model": "mock/same"},
		"weak":   map[string]string{"model": "mock/same"},
	}

	rec := doRequest(t, engine, http.MethodPost, "/v1/chat/completions", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCompleteChat_UnknownOptimizationMetric_Returns400(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	body := baseRequestBody()
	body["optimization_metric"] = "bogus"

	rec := doRequest(t, engine, http.MethodPost, "/v1/chat/completions", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCompleteChat_DuplicateSemanticRouteNames_Returns400(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	body := baseRequestBody()
	body["semantics"] = []map[string]any{
		{"name": "greeting", "model_type": "weak", "utterances": []string{"hi"}},
		{"name": "greeting", "model_type": "weak", "utterances": []string{"hello"}},
	}

	rec := doRequest(t, engine, http.MethodPost, "/v1/chat/completions", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListModels_ReturnsConfiguredDefaults(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	rec := doRequest(t, engine, http.MethodGet, "/v1/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Models) != 2 || resp.Models[0] != "gpt-4o" || resp.Models[1] != "gpt-4o-mini" {
		t.Errorf("expected configured defaults [gpt-4o gpt-4o-mini], got %v", resp.Models)
	}
}

// capturingProvider records the messages passed to Complete so tests can
// assert on the prompt actually sent to the backend.
type capturingProvider struct {
	calls *[][]completion.ChatMessage
}

func (p capturingProvider) Complete(ctx context.Context, messages []completion.ChatMessage, params completion.PassthroughParams) (*completion.Response, error) {
	cp := make([]completion.ChatMessage, len(messages))
	copy(cp, messages)
	*p.calls = append(*p.calls, cp)
	return &completion.Response{Content: "assistant reply", FinishReason: "stop"}, nil
}

func newTestRouterWithStore(t *testing.T, store *storage.Store, calls *[][]completion.ChatMessage) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	policy := &router.Policy{Difficulty: stubDifficulty{score: 0.0}}
	driver := &completion.Driver{
		Policy: policy,
		NewProvider: func(desc router.ModelDescriptor) (completion.Provider, error) {
			return capturingProvider{calls: calls}, nil
		},
	}
	return NewRouter(Deps{
		Driver:      driver,
		Store:       store,
		DefaultPair: config.DefaultPairConfig{StrongModelName: "gpt-4o", WeakModelName: "gpt-4o-mini"},
	})
}

// TestPostChatMessage_DoesNotDuplicateNewUserMessage guards against the new
// user turn being both read back out of history and appended again: the
// context built for the backend must contain it exactly once, trailing the
// prior turns.
func TestPostChatMessage_DoesNotDuplicateNewUserMessage(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	chat, err := store.CreateChat("support thread", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if _, err := store.AddMessage(storage.Message{ChatID: chat.ID, Role: "user", Content: "first question"}); err != nil {
		t.Fatalf("seed user message: %v", err)
	}
	if _, err := store.AddMessage(storage.Message{ChatID: chat.ID, Role: "assistant", Content: "first reply"}); err != nil {
		t.Fatalf("seed assistant message: %v", err)
	}

	var calls [][]completion.ChatMessage
	engine := newTestRouterWithStore(t, store, &calls)

	rec := doRequest(t, engine, http.MethodPost, "/v1/chats/"+chat.ID+"/messages", map[string]any{
		"content": "second question",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(calls) != 1 {
		t.Fatalf("expected exactly one backend call, got %d", len(calls))
	}

	sent := calls[0]
	occurrences := 0
	for _, m := range sent {
		if m.Role == "user" && m.Content == "second question" {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Errorf("expected 'second question' to appear exactly once in the sent messages, got %d (messages: %+v)", occurrences, sent)
	}
	if len(sent) == 0 || sent[len(sent)-1].Content != "second question" {
		t.Errorf("expected the new user message to be the trailing message, got %+v", sent)
	}
}

func TestPutDefaultModels_RejectsEqualPair(t *testing.T) {
	engine := newTestRouter(t, 0.0)
	rec := doRequest(t, engine, http.MethodPut, "/v1/models/defaults", map[string]any{
		"strong": "same", "weak": "same",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
