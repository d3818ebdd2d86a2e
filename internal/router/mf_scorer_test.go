package router

import (
	"context"
	"errors"
	"testing"
)

type stubMFEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (s *stubMFEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectors[t]
	}
	return out, nil
}

func TestMFScorer_Score_InRange(t *testing.T) {
	embedder := &stubMFEmbedder{vectors: map[string][]float32{"hello": {0.1, 0.2, 0.3, 0.4}}}
	scorer, err := NewMFScorer(embedder, 4)
	if err != nil {
		t.Fatalf("NewMFScorer: %v", err)
	}

	score, err := scorer.Score(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score < 0 || score > 1 {
		t.Errorf("expected score in [0,1], got %f", score)
	}
}

func TestMFScorer_Score_MemoizesByQuery(t *testing.T) {
	embedder := &stubMFEmbedder{vectors: map[string][]float32{"hello": {0.1, 0.2, 0.3, 0.4}}}
	scorer, err := NewMFScorer(embedder, 4)
	if err != nil {
		t.Fatalf("NewMFScorer: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := scorer.Score(context.Background(), "hello"); err != nil {
			t.Fatalf("Score: %v", err)
		}
	}
	if embedder.calls != 1 {
		t.Errorf("expected embedder called once due to memoization, got %d calls", embedder.calls)
	}
}

func TestMFScorer_Score_DeterministicForSameQuery(t *testing.T) {
	embedder := &stubMFEmbedder{vectors: map[string][]float32{"x": {0.5, -0.2, 0.9, 0.1}}}
	scorer, err := NewMFScorer(embedder, 4)
	if err != nil {
		t.Fatalf("NewMFScorer: %v", err)
	}

	first, err := scorer.Score(context.Background(), "x")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	scorer2, err := NewMFScorer(embedder, 4)
	if err != nil {
		t.Fatalf("NewMFScorer: %v", err)
	}
	second, err := scorer2.Score(context.Background(), "x")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if first != second {
		t.Errorf("expected deterministic score across fresh scorers, got %f and %f", first, second)
	}
}

func TestMFScorer_Score_EmbedderError_ReturnsExternalDependencyError(t *testing.T) {
	embedder := &stubMFEmbedder{err: errors.New("embedding backend down")}
	scorer, err := NewMFScorer(embedder, 4)
	if err != nil {
		t.Fatalf("NewMFScorer: %v", err)
	}

	if _, err := scorer.Score(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when embedder fails")
	}
}
