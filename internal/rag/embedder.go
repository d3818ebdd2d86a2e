package rag

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
)

const (
	defaultEmbeddingBaseURL = "https://api.openai.com/v1"
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultEmbeddingDims    = 1536
	defaultCacheSize        = 512
)

// EmbedderConfig configures the embedding backend used to build and query
// semantic routes and RAG knowledge-base chunks.
type EmbedderConfig struct {
	Provider  string // only "openai" (default) is implemented
	Model     string
	APIKey    string
	BaseURL   string
	CacheSize int
}

func (c *EmbedderConfig) defaults() {
	if c.Model == "" {
		c.Model = defaultEmbeddingModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultEmbeddingBaseURL
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
}

// Embedder speaks the OpenAI-compatible embeddings wire format and caches
// results by text hash so repeated utterances (semantic route construction
// re-embeds identical exemplars across requests) don't re-hit the network.
type Embedder struct {
	cfg   EmbedderConfig
	http  *http.Client
	cache *lru.Cache[string, []float32]
	dims  int
}

// NewEmbedder builds an Embedder. Defaults to OpenAI's
// text-embedding-3-small, 1536 dimensions.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	cfg.defaults()
	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to construct embedding cache")
	}
	return &Embedder{
		cfg:   cfg,
		http:  &http.Client{Timeout: 30 * time.Second},
		cache: cache,
		dims:  dimensionsFor(cfg.Model),
	}, nil
}

func dimensionsFor(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	default:
		return defaultEmbeddingDims
	}
}

// Dimensions reports the embedding vector length this embedder produces.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed returns the embedding for a single text, consulting the cache first.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(cacheKey(text)); ok {
		return v, nil
	}
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, gwerrors.NewExternalDependencyError(fmt.Errorf("empty embedding response"), "embedding backend returned no vectors")
	}
	return out[0], nil
}

// EmbedBatch embeds many texts in one request, splitting the cache hits
// (at any position in texts) from the texts that still need a network
// round trip.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := e.cache.Get(cacheKey(t)); ok {
			results[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	vecs, err := e.embedRemote(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = vecs[j]
		e.cache.Add(cacheKey(missTexts[j]), vecs[j])
	}
	return results, nil
}

func (e *Embedder) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model": e.cfg.Model,
		"input": texts,
	})
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to marshal embedding request")
	}

	endpoint := e.cfg.BaseURL + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to build embedding request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	logging.RAGLogger.Debug("POST %s model=%s count=%d", endpoint, e.cfg.Model, len(texts))

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, "embedding backend request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, "failed to read embedding response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gwerrors.NewExternalDependencyError(fmt.Errorf("embedding backend status %d: %s", resp.StatusCode, string(body)), "embedding backend returned an error status")
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, "failed to decode embedding response")
	}
	if len(parsed.Data) != len(texts) {
		return nil, gwerrors.NewExternalDependencyError(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data)), "embedding backend returned a mismatched vector count")
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
