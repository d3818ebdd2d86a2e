package router

import (
	"context"

	gwerrors "routegate/internal/errors"
)

// DifficultyThreshold is the calibrated cutoff at or above which a query is
// routed to the strong tier. Calibrated offline to route roughly half of a
// reference query distribution to strong; expose as a named constant so it
// can be retuned without touching the decision logic.
const DifficultyThreshold = 0.11593

// DifficultyScorer estimates, in [0, 1], the probability that the strong
// model would give a materially better answer than the weak one.
type DifficultyScorer interface {
	Score(ctx context.Context, query string) (float64, error)
}

// DifficultyClassifier wraps a DifficultyScorer with the threshold decision.
type DifficultyClassifier struct {
	Scorer DifficultyScorer
}

// Classify scores the query and returns TierStrong when the score is at or
// above DifficultyThreshold (the boundary belongs to strong, not weak).
func (d *DifficultyClassifier) Classify(ctx context.Context, query string) (Tier, error) {
	score, err := d.Scorer.Score(ctx, query)
	if err != nil {
		return "", gwerrors.NewExternalDependencyError(err, "difficulty scorer failed")
	}
	if score >= DifficultyThreshold {
		return TierStrong, nil
	}
	return TierWeak, nil
}
