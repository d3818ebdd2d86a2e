package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"routegate/internal/completion"
	"routegate/internal/config"
	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
	"routegate/internal/rag"
	"routegate/internal/router"
	"routegate/internal/storage"
)

type handlers struct {
	deps Deps

	// defaultPair is the one piece of mutable gateway state: the fallback
	// model pair served by /v1/models/defaults. Guarded because PUT
	// updates race with concurrent chat-message requests reading it.
	mu          sync.RWMutex
	defaultPair config.DefaultPairConfig
}

func (h *handlers) currentDefaultPair() config.DefaultPairConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaultPair
}

// completeChat implements POST /v1/chat/completions, the OpenAI-compatible
// gateway endpoint: parse, route, call, respond.
func (h *handlers) completeChat(c *gin.Context) {
	var req chatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, gwerrors.NewValidationError(err, "malformed request body"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, gwerrors.NewValidationError(nil, "messages must not be empty"))
		return
	}

	pair, err := parseModelPair(req.Models)
	if err != nil {
		writeError(c, err)
		return
	}
	optTarget, err := parseOptimizationTarget(req.OptimizationMetric)
	if err != nil {
		writeError(c, err)
		return
	}
	routes, err := parseSemanticRoutes(req.Semantics)
	if err != nil {
		writeError(c, err)
		return
	}

	messages := make([]completion.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = completion.ChatMessage{Role: m.Role, Content: m.Content}
	}
	params := completion.PassthroughParams{Temperature: req.Temperature, MaxTokens: req.MaxTokens, Stop: req.Stop}

	start := time.Now()
	resp, decision, err := h.deps.Driver.Complete(c.Request.Context(), messages, pair, optTarget, routes, params)
	if err != nil {
		h.recordFailureMetrics(c.Request.Context(), decision, err)
		writeError(c, err)
		return
	}

	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordDecision(c.Request.Context(), string(decision.ChosenTier), decision.Basis)
		h.deps.Metrics.RecordRequestDuration(c.Request.Context(), time.Since(start).Seconds(), string(decision.ChosenTier))
	}

	c.JSON(http.StatusOK, toCompletionResponse(resp, decision, pair))
}

func (h *handlers) recordFailureMetrics(ctx context.Context, decision router.Decision, err error) {
	if h.deps.Metrics == nil {
		return
	}
	tier := string(decision.ChosenTier)
	var gwErr *gwerrors.GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind == gwerrors.KindUpstream {
		h.deps.Metrics.RecordUpstreamError(ctx, tier)
	}
}

func toCompletionResponse(resp *completion.Response, decision router.Decision, pair router.ModelPair) chatCompletionResponse {
	return chatCompletionResponse{
		ID:     uuid.NewString(),
		Object: "chat.completion",
		Model:  pair.Descriptor(decision.ChosenTier).WireModel(),
		Choices: []choiceDTO{{
			Index:        0,
			Message:      chatMessageDTO{Role: "assistant", Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage: usageDTO{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RoutingDecision: toDecisionDTO(decision),
		Metadata:        resp.Metadata,
	}
}

func toDecisionDTO(d router.Decision) routingDecisionDTO {
	return routingDecisionDTO{
		Query:              d.Query,
		ChosenTier:         string(d.ChosenTier),
		ChosenModelName:    d.ChosenModelName,
		PredictedSemantic:  d.PredictedSemantic,
		OptimizationTarget: string(d.OptimizationTarget),
		Basis:              d.Basis,
	}
}

// writeError maps a GatewayError (or any error, defaulting to Internal) to
// its HTTP status and a small JSON body.
func writeError(c *gin.Context, err error) {
	var gwErr *gwerrors.GatewayError
	if !errors.As(err, &gwErr) {
		gwErr = gwerrors.NewInternalError(err, "internal error")
	}
	logging.ServerLogger.Warn("%s: %v", gwErr.Kind, gwErr.Err)
	c.AbortWithStatusJSON(gwErr.HTTPStatus(), errorResponse{Error: errorDetail{
		Message: gwErr.Error(),
		Type:    string(gwErr.Kind),
	}})
}

// listModels implements GET /v1/models: the configured default pair's two
// names, the only models this gateway has a standing opinion about (there
// is no global model registry; every completion request carries its own
// pair).
func (h *handlers) listModels(c *gin.Context) {
	pair := h.currentDefaultPair()
	c.JSON(http.StatusOK, gin.H{
		"models": []string{pair.StrongModelName, pair.WeakModelName},
	})
}

// getDefaultModels implements GET /v1/models/defaults.
func (h *handlers) getDefaultModels(c *gin.Context) {
	pair := h.currentDefaultPair()
	c.JSON(http.StatusOK, gin.H{
		"strong": pair.StrongModelName,
		"weak":   pair.WeakModelName,
	})
}

type defaultPairUpdateDTO struct {
	Strong string `json:"strong"`
	Weak   string `json:"weak"`
}

// putDefaultModels implements PUT /v1/models/defaults, rejecting
// strong == weak exactly like the core request validation.
func (h *handlers) putDefaultModels(c *gin.Context) {
	var body defaultPairUpdateDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gwerrors.NewValidationError(err, "malformed request body"))
		return
	}
	if body.Strong == "" || body.Weak == "" {
		writeError(c, gwerrors.NewValidationError(nil, "strong and weak are both required"))
		return
	}
	if body.Strong == body.Weak {
		writeError(c, gwerrors.NewValidationError(nil, "strong and weak must be distinct"))
		return
	}
	h.mu.Lock()
	h.defaultPair.StrongModelName = body.Strong
	h.defaultPair.WeakModelName = body.Weak
	h.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"strong": body.Strong, "weak": body.Weak})
}

type createChatRequestDTO struct {
	Name          string `json:"name"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`
}

// createChat implements POST /v1/chats: creates a chat and, if a knowledge
// base text is supplied, chunks + embeds it into a per-chat vector store.
func (h *handlers) createChat(c *gin.Context) {
	if h.deps.Store == nil {
		writeError(c, gwerrors.NewInternalError(nil, "chat storage is not configured"))
		return
	}

	var body createChatRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gwerrors.NewValidationError(err, "malformed request body"))
		return
	}
	if body.Name == "" {
		writeError(c, gwerrors.NewValidationError(nil, "name is required"))
		return
	}

	kbPath := ""
	if body.KnowledgeBase != "" {
		if h.deps.Embedder == nil {
			writeError(c, gwerrors.NewExternalDependencyError(nil, "knowledge base ingestion requires an embedding backend"))
			return
		}
		path, err := h.ingestKnowledgeBase(c.Request.Context(), body.Name, body.KnowledgeBase)
		if err != nil {
			writeError(c, err)
			return
		}
		kbPath = path
	}

	chat, err := h.deps.Store.CreateChat(body.Name, kbPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChatSummaryDTO(*chat))
}

func (h *handlers) ingestKnowledgeBase(ctx context.Context, chatName, text string) (string, error) {
	chunker, err := rag.NewChunker(rag.ChunkerConfig{
		ChunkSize:    h.deps.RAGConfig.ChunkSize,
		ChunkOverlap: h.deps.RAGConfig.ChunkOverlap,
	})
	if err != nil {
		return "", gwerrors.NewInternalError(err, "failed to construct chunker")
	}
	chunks, err := chunker.ChunkText(text, map[string]string{"source": chatName})
	if err != nil {
		return "", gwerrors.NewInternalError(err, "failed to chunk knowledge base text")
	}

	storeDir := h.deps.RAGConfig.VectorStoreDir
	collection := "chat-" + uuid.NewString()
	store, err := rag.NewVectorStore(rag.StoreConfig{PersistPath: storeDir, Collection: collection}, h.deps.Embedder)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := h.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return "", gwerrors.NewExternalDependencyError(err, "failed to embed knowledge base chunks")
	}

	docs := make([]rag.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = rag.Document{ID: uuid.NewString(), Content: ch.Content, Embedding: embeddings[i], Metadata: ch.Metadata}
	}
	if err := store.Add(ctx, docs); err != nil {
		return "", err
	}
	return storeDir + "/" + collection, nil
}

type chatSummaryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartedAt string `json:"started_at"`
}

func toChatSummaryDTO(chat storage.Chat) chatSummaryDTO {
	return chatSummaryDTO{ID: chat.ID, Name: chat.Name, StartedAt: chat.StartedAt.Format(time.RFC3339)}
}

// listChats implements GET /v1/chats.
func (h *handlers) listChats(c *gin.Context) {
	if h.deps.Store == nil {
		writeError(c, gwerrors.NewInternalError(nil, "chat storage is not configured"))
		return
	}
	chats, err := h.deps.Store.ListChats()
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]chatSummaryDTO, len(chats))
	for i, ch := range chats {
		out[i] = toChatSummaryDTO(ch)
	}
	c.JSON(http.StatusOK, gin.H{"chats": out})
}

type messageDTO struct {
	Role              string            `json:"role"`
	Content           string            `json:"content"`
	SentAt            string            `json:"sent_at"`
	ModelUsed         string            `json:"model_used,omitempty"`
	PredictedSemantic string            `json:"predicted_semantic,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

func toMessageDTO(m storage.Message) messageDTO {
	return messageDTO{
		Role: m.Role, Content: m.Content, SentAt: m.SentAt.Format(time.RFC3339),
		ModelUsed: m.ModelUsed, PredictedSemantic: m.PredictedSemantic, Metadata: m.Metadata,
	}
}

// getChat implements GET /v1/chats/{id}.
func (h *handlers) getChat(c *gin.Context) {
	if h.deps.Store == nil {
		writeError(c, gwerrors.NewInternalError(nil, "chat storage is not configured"))
		return
	}
	chat, err := h.deps.Store.GetChat(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	msgs := make([]messageDTO, len(chat.Messages))
	for i, m := range chat.Messages {
		msgs[i] = toMessageDTO(m)
	}
	c.JSON(http.StatusOK, gin.H{
		"id": chat.ID, "name": chat.Name, "started_at": chat.StartedAt.Format(time.RFC3339),
		"messages": msgs,
	})
}

type postMessageRequestDTO struct {
	Content            string     `json:"content"`
	Models             *modelsDTO `json:"models"`
	OptimizationMetric string     `json:"optimization_metric,omitempty"`
}

// historyWindow is the number of prior turns prepended ahead of a new
// message.
const historyWindow = 4

// postChatMessage implements POST /v1/chats/{id}/messages: builds a
// retrieval-augmented prompt (top-K chunks from the chat's knowledge base
// plus the last few turns of history), calls the completion driver, and
// persists both the user and assistant turns.
func (h *handlers) postChatMessage(c *gin.Context) {
	if h.deps.Store == nil {
		writeError(c, gwerrors.NewInternalError(nil, "chat storage is not configured"))
		return
	}

	chatID := c.Param("id")
	chat, err := h.deps.Store.GetChat(chatID)
	if err != nil {
		writeError(c, err)
		return
	}

	var body postMessageRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, gwerrors.NewValidationError(err, "malformed request body"))
		return
	}
	if body.Content == "" {
		writeError(c, gwerrors.NewValidationError(nil, "content is required"))
		return
	}

	pair, err := h.resolvePair(body.Models)
	if err != nil {
		writeError(c, err)
		return
	}
	optTarget, err := parseOptimizationTarget(body.OptimizationMetric)
	if err != nil {
		writeError(c, err)
		return
	}

	// Build the prompt from history taken *before* persisting this turn:
	// the new user message is appended to the context in memory and stored
	// afterwards, so LastMessages never returns it a second time.
	messages, err := h.buildContextMessages(c.Request.Context(), chat, body.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := h.deps.Store.AddMessage(storage.Message{ChatID: chatID, Role: "user", Content: body.Content}); err != nil {
		writeError(c, err)
		return
	}

	resp, decision, err := h.deps.Driver.Complete(c.Request.Context(), messages, pair, optTarget, nil, completion.PassthroughParams{})
	if err != nil {
		writeError(c, err)
		return
	}

	semantic := decision.PredictedSemantic
	assistantMsg, err := h.deps.Store.AddMessage(storage.Message{
		ChatID: chatID, Role: "assistant", Content: resp.Content,
		ModelUsed: decision.ChosenModelName, PredictedSemantic: semantic,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          toMessageDTO(*assistantMsg),
		"routing_decision": toDecisionDTO(decision),
	})
}

// buildContextMessages prepends up to historyWindow prior turns and, when
// the chat has a knowledge base, up to retrievalTopK relevant chunks ahead
// of the new user message.
func (h *handlers) buildContextMessages(ctx context.Context, chat *storage.Chat, newContent string) ([]completion.ChatMessage, error) {
	var out []completion.ChatMessage

	if chat.KnowledgeBaseIndexPath != "" && h.deps.Embedder != nil {
		store, err := rag.NewVectorStore(rag.StoreConfig{PersistPath: h.deps.RAGConfig.VectorStoreDir, Collection: chatCollectionName(chat.KnowledgeBaseIndexPath)}, h.deps.Embedder)
		if err != nil {
			return nil, err
		}
		docs, err := store.Query(ctx, newContent, h.deps.RAGConfig.RetrievalTopK, float32(h.deps.RAGConfig.SimilarityFloor))
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			var sb strings.Builder
			sb.WriteString("Relevant context:\n")
			for _, d := range docs {
				sb.WriteString(d.Content)
				sb.WriteString("\n\n")
			}
			out = append(out, completion.ChatMessage{Role: "system", Content: sb.String()})
		}
	}

	history, err := h.deps.Store.LastMessages(chat.ID, historyWindow)
	if err != nil {
		return nil, err
	}
	for _, m := range history {
		out = append(out, completion.ChatMessage{Role: m.Role, Content: m.Content})
	}
	out = append(out, completion.ChatMessage{Role: "user", Content: newContent})
	return out, nil
}

// resolvePair falls back to the gateway's configured default model pair
// (STRONG_MODEL_NAME / WEAK_MODEL_NAME) when a request omits models
// entirely. Applies only to the chat-message endpoint;
// /v1/chat/completions itself always requires an explicit pair.
func (h *handlers) resolvePair(m *modelsDTO) (router.ModelPair, error) {
	if m != nil {
		return parseModelPair(m)
	}
	pair := h.currentDefaultPair()
	return router.ModelPair{
		Strong: router.ModelDescriptor{Name: pair.StrongModelName, Credential: pair.OpenAIAPIKey},
		Weak:   router.ModelDescriptor{Name: pair.WeakModelName, Credential: pair.OpenAIAPIKey},
	}, nil
}

func chatCollectionName(indexPath string) string {
	for i := len(indexPath) - 1; i >= 0; i-- {
		if indexPath[i] == '/' {
			return indexPath[i+1:]
		}
	}
	return indexPath
}
