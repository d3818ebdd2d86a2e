package router

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	gwerrors "routegate/internal/errors"
)

// Embedder generates embeddings for text. Construction-time (route
// utterances) and query-time embedding both go through this one method so a
// test can inject a deterministic stub.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// topKSimilar is how many of a route's utterance similarities are averaged
// to produce the route's aggregate score.
const topKSimilar = 3

// similarityFloor is the minimum aggregate similarity required to accept a
// route match; below this the query is classified as unmatched.
const similarityFloor = 0.75

type routeEmbeddings struct {
	route      SemanticRoute
	embeddings [][]float32
}

// SemanticClassifier embeds each route's utterances once at construction and
// classifies queries against those fixed embeddings.
type SemanticClassifier struct {
	routes   []routeEmbeddings
	embedder Embedder
}

// NewSemanticClassifier builds a classifier from the given routes. Routes
// with duplicate names are rejected. An empty route list is a programmer
// error at the call site (the policy must skip construction entirely); this
// constructor still accepts it and yields a classifier that always returns
// no match.
func NewSemanticClassifier(ctx context.Context, routes []SemanticRoute, embedder Embedder) (*SemanticClassifier, error) {
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if seen[r.Name] {
			return nil, gwerrors.NewValidationError(nil, "duplicate semantic route name: "+r.Name)
		}
		seen[r.Name] = true
	}

	nonEmpty := make([]SemanticRoute, 0, len(routes))
	for _, r := range routes {
		if len(r.Utterances) > 0 {
			nonEmpty = append(nonEmpty, r)
		}
	}

	results := make([][][]float32, len(nonEmpty))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, r := range nonEmpty {
		i, r := i, r
		group.Go(func() error {
			vecs, err := embedder.Embed(groupCtx, r.Utterances)
			if err != nil {
				return err
			}
			results[i] = vecs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, gwerrors.NewExternalDependencyError(err, "embedding backend failed while building semantic routes")
	}

	c := &SemanticClassifier{routes: make([]routeEmbeddings, 0, len(nonEmpty)), embedder: embedder}
	for i, r := range nonEmpty {
		c.routes = append(c.routes, routeEmbeddings{route: r, embeddings: results[i]})
	}
	return c, nil
}

// Classify embeds the query and returns the best-matching route name, or
// ("", false, nil) if nothing clears the similarity floor.
func (c *SemanticClassifier) Classify(ctx context.Context, query string) (string, bool, error) {
	if len(c.routes) == 0 {
		return "", false, nil
	}

	queryVecs, err := embedOne(ctx, c.embedder, query)
	if err != nil {
		return "", false, gwerrors.NewExternalDependencyError(err, "embedding backend failed while classifying query")
	}

	bestName := ""
	bestScore := math.Inf(-1)
	for _, re := range c.routes {
		score := aggregateSimilarity(queryVecs, re.embeddings)
		if score > bestScore {
			bestScore = score
			bestName = re.route.Name
		}
	}

	if bestScore < similarityFloor {
		return "", false, nil
	}
	return bestName, true, nil
}

func embedOne(ctx context.Context, embedder Embedder, text string) ([]float32, error) {
	vecs, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}

// aggregateSimilarity is the mean cosine similarity of the topKSimilar
// highest-scoring utterance embeddings in one route, order-independent.
func aggregateSimilarity(query []float32, utterances [][]float32) float64 {
	if len(utterances) == 0 {
		return math.Inf(-1)
	}
	scores := make([]float64, 0, len(utterances))
	for _, u := range utterances {
		scores = append(scores, cosineSimilarity(query, u))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	k := topKSimilar
	if k > len(scores) {
		k = len(scores)
	}
	var sum float64
	for i := 0; i < k; i++ {
		sum += scores[i]
	}
	return sum / float64(k)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
