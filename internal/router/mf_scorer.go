package router

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	gwerrors "routegate/internal/errors"
)

// MFScorer is a matrix-factorization-style DifficultyScorer: it projects
// the query's embedding onto a fixed "strong model wins" direction and
// squashes the result into [0, 1] with a sigmoid, the same shape as
// RouteLLM's "mf" router. A single embedding-space direction stands in for
// the pairwise-preference factorization model, since no trained weights
// ship with this repo.
//
// Scores are memoized by query hash: the embedding call is the expensive
// part and repeated identical queries (retries, evaluation harnesses) are
// common.
type MFScorer struct {
	embedder Embedder
	weights  []float32
	cache    *lru.Cache[string, float64]
}

// mfScorerCacheSize bounds the memoization cache; difficulty scores are
// small floats so this costs little even fully populated.
const mfScorerCacheSize = 4096

// NewMFScorer builds a scorer over dims-dimensional embeddings. weights are
// derived deterministically from a fixed seed so the scorer needs no
// bundled model file. The seed is a constant inside seedWeights and the
// weights field is unexported; there is no option to supply another seed
// or calibrated weights.
func NewMFScorer(embedder Embedder, dims int) (*MFScorer, error) {
	cache, err := lru.New[string, float64](mfScorerCacheSize)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to construct difficulty score cache")
	}
	return &MFScorer{
		embedder: embedder,
		weights:  seedWeights(dims),
		cache:    cache,
	}, nil
}

// Score implements DifficultyScorer.
func (m *MFScorer) Score(ctx context.Context, query string) (float64, error) {
	key := cacheKeyForQuery(query)
	if score, ok := m.cache.Get(key); ok {
		return score, nil
	}

	embeddings, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return 0, gwerrors.NewExternalDependencyError(err, "difficulty embedding failed")
	}
	if len(embeddings) == 0 {
		return 0, gwerrors.NewExternalDependencyError(nil, "difficulty embedder returned no vector")
	}

	score := sigmoid(dot(embeddings[0], m.weights) / float64(len(m.weights)))
	m.cache.Add(key, score)
	return score, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// seedWeights derives a deterministic, reproducible unit-ish vector from a
// fixed seed string, one SHA-256 block at a time. Using a hash instead of
// math/rand avoids pulling in a second PRNG dependency for what is, absent
// trained weights, an arbitrary but stable direction.
func seedWeights(dims int) []float32 {
	weights := make([]float32, dims)
	seed := "routegate-mf-scorer-v1"
	block := 0
	var buf [32]byte
	for i := 0; i < dims; i++ {
		if i%8 == 0 {
			h := sha256.Sum256(append([]byte(seed), byte(block)))
			buf = h
			block++
		}
		raw := binary.BigEndian.Uint32(buf[(i%8)*4 : (i%8)*4+4])
		// map to [-1, 1]
		weights[i] = float32(raw)/float32(^uint32(0))*2 - 1
	}
	return weights
}

func cacheKeyForQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return string(sum[:])
}
