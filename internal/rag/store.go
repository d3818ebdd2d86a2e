package rag

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/philippgille/chromem-go"

	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
)

// Document is one embedded, retrievable unit in a knowledge base: either a
// chunk produced by Chunker or a directly-supplied passage.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// StoreConfig configures a per-chat (or per-knowledge-base) vector store.
type StoreConfig struct {
	PersistPath string // directory backing the embedded chromem-go database
	Collection  string
}

// VectorStore wraps a chromem-go collection: documents carry precomputed
// embeddings (produced by Chunker + Embedder upstream), so the collection's
// own embedding function is only exercised on the query side.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewVectorStore opens (or creates) a persistent collection at
// cfg.PersistPath. Collections are process-local and safe for concurrent
// use; chromem-go serializes access internally.
func NewVectorStore(cfg StoreConfig, embedder queryEmbedder) (*VectorStore, error) {
	if cfg.Collection == "" {
		return nil, gwerrors.NewValidationError(nil, "vector store collection name is required")
	}

	db, err := chromem.NewPersistentDB(cfg.PersistPath, false)
	if err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, "failed to open vector store")
	}

	embFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, embFunc)
	if err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, "failed to open vector store collection")
	}

	return &VectorStore{db: db, collection: coll}, nil
}

// queryEmbedder is the subset of Embedder the store needs for query-time
// embedding; accepting the interface (rather than *Embedder) lets tests
// inject a deterministic stub.
type queryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Add inserts or replaces documents by ID.
func (s *VectorStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	cdocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		cdocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: d.Embedding,
			Metadata:  d.Metadata,
		}
	}
	concurrency := runtime.NumCPU()
	if err := s.collection.AddDocuments(ctx, cdocs, concurrency); err != nil {
		return gwerrors.NewExternalDependencyError(err, "failed to add documents to vector store")
	}
	logging.RAGLogger.Debug("added %d documents to collection %s", len(docs), s.collection.Name)
	return nil
}

// Delete removes documents by ID.
func (s *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return gwerrors.NewExternalDependencyError(err, "failed to delete documents from vector store")
	}
	return nil
}

// Count reports the number of documents currently stored.
func (s *VectorStore) Count() int {
	return s.collection.Count()
}

// Query returns up to topK documents most similar to query, restricted to
// those whose similarity clears scoreFloor.
func (s *VectorStore) Query(ctx context.Context, query string, topK int, scoreFloor float32) ([]Document, error) {
	if topK <= 0 {
		topK = 4
	}
	n := topK
	if count := s.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, fmt.Sprintf("vector store query failed on collection %s", s.collection.Name))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		if r.Similarity < scoreFloor {
			continue
		}
		docs = append(docs, Document{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: r.Embedding,
			Metadata:  r.Metadata,
		})
	}
	return docs, nil
}
