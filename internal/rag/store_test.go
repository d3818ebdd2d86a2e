package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{}

func (s stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (s stubEmbedder) Dimensions() int {
	return 3
}

func TestVectorStore_DeleteByID(t *testing.T) {
	ctx := context.Background()
	store, err := NewVectorStore(StoreConfig{PersistPath: t.TempDir(), Collection: "test"}, stubEmbedder{})
	require.NoError(t, err)

	doc := Document{
		ID:        "doc-1",
		Content:   "hello",
		Embedding: []float32{0.1, 0.2, 0.3},
		Metadata:  map[string]string{},
	}

	require.NoError(t, store.Add(ctx, []Document{doc}))
	require.Equal(t, 1, store.Count())

	require.NoError(t, store.Delete(ctx, []string{"doc-1"}))
	require.Equal(t, 0, store.Count())
}

func TestVectorStore_RequiresCollectionName(t *testing.T) {
	_, err := NewVectorStore(StoreConfig{PersistPath: t.TempDir()}, stubEmbedder{})
	require.Error(t, err)
}

func TestVectorStore_Query_FiltersByScoreFloor(t *testing.T) {
	ctx := context.Background()
	store, err := NewVectorStore(StoreConfig{PersistPath: t.TempDir(), Collection: "test"}, stubEmbedder{})
	require.NoError(t, err)

	docs := []Document{
		{ID: "a", Content: "aligned", Embedding: []float32{0.1, 0.2, 0.3}},
		{ID: "b", Content: "orthogonal", Embedding: []float32{0.3, -0.2, 0.03}},
	}
	require.NoError(t, store.Add(ctx, docs))

	got, err := store.Query(ctx, "hello", 2, 0.99)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)
}
