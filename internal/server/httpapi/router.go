package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"routegate/internal/completion"
	"routegate/internal/config"
	"routegate/internal/observability"
	"routegate/internal/storage"
)

// Deps are the collaborators the gateway's handlers call into. The core
// routing engine (router.Policy, completion.Driver) is a required
// dependency; Store and RAG are optional: a gateway run without
// persistence or knowledge-base ingestion still serves
// /v1/chat/completions, it just can't serve the chat collaborator routes.
type Deps struct {
	Driver      *completion.Driver
	Store       *storage.Store
	Metrics     *observability.Metrics
	DefaultPair config.DefaultPairConfig
	RAGConfig   config.RAGConfig
	Embedder    ragEmbedder
}

// ragEmbedder is the subset of rag.Embedder the gateway needs to build
// per-chat vector stores; named here so Deps doesn't import more of rag
// than it uses.
type ragEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NewRouter builds the gin engine exposing the OpenAI-compatible completion
// endpoint plus the chat/model collaborator routes.
func NewRouter(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	h := &handlers{deps: deps, defaultPair: deps.DefaultPair}

	v1 := engine.Group("/v1")
	v1.POST("/chat/completions", h.completeChat)
	v1.GET("/models", h.listModels)
	v1.GET("/models/defaults", h.getDefaultModels)
	v1.PUT("/models/defaults", h.putDefaultModels)
	v1.POST("/chats", h.createChat)
	v1.GET("/chats", h.listChats)
	v1.GET("/chats/:id", h.getChat)
	v1.POST("/chats/:id/messages", h.postChatMessage)

	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	return engine
}
