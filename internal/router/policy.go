package router

import (
	"context"
	"fmt"

	"routegate/internal/logging"
)

// Policy composes the semantic and difficulty classifiers under the fixed
// precedence (optimization short-circuit, then semantic match, then
// difficulty fallback) and returns a Decision. It never calls a backend.
//
// Embedder and Difficulty are injected as interfaces per the redesign away
// from hidden singleton clients: tests supply deterministic stubs.
type Policy struct {
	Embedder   Embedder
	Difficulty DifficultyScorer
}

// Decide implements the routing precedence described in the component
// design. query is the last user message; pair is per-request; optTarget
// and routes are both optional (zero value / nil / empty).
func (p *Policy) Decide(ctx context.Context, query string, pair ModelPair, optTarget OptimizationTarget, routes []SemanticRoute) (Decision, error) {
	if err := pair.Validate(); err != nil {
		return Decision{}, err
	}

	// 1. Optimization short-circuit.
	switch optTarget {
	case OptPerformance:
		return p.decision(query, pair, TierStrong, optTarget, "", "optimization:performance"), nil
	case OptCost:
		return p.decision(query, pair, TierWeak, optTarget, "", "optimization:cost"), nil
	case OptLatency:
		tier := TierWeak // ties go to weak (cheaper)
		if pair.Strong.SimulatedThroughput > pair.Weak.SimulatedThroughput {
			tier = TierStrong
		}
		basis := fmt.Sprintf("optimization:latency (strong_tps=%.0f weak_tps=%.0f)",
			pair.Strong.SimulatedThroughput, pair.Weak.SimulatedThroughput)
		return p.decision(query, pair, tier, optTarget, "", basis), nil
	}
	// OptAvailability and "" (no preference) fall through; availability
	// only affects the Completion Driver's error handling, not the choice.

	// 2. Semantic match.
	if len(routes) > 0 {
		classifier, err := NewSemanticClassifier(ctx, routes, p.Embedder)
		if err != nil {
			logging.RouterLogger.Warn("semantic classifier unavailable, falling through to difficulty: %v", err)
		} else {
			name, matched, err := classifier.Classify(ctx, query)
			if err != nil {
				logging.RouterLogger.Warn("semantic classification failed, falling through to difficulty: %v", err)
			} else if matched {
				route := findRoute(routes, name)
				basis := "semantic:" + name
				return p.decision(query, pair, route.TargetTier, optTarget, name, basis), nil
			}
		}
	}

	// 3. Difficulty fallback. This step's failure is terminal: it is the
	// last line of the precedence, so there is nothing left to fall
	// through to.
	dc := DifficultyClassifier{Scorer: p.Difficulty}
	tier, err := dc.Classify(ctx, query)
	if err != nil {
		return Decision{}, err
	}
	return p.decision(query, pair, tier, optTarget, "", "difficulty"), nil
}

func (p *Policy) decision(query string, pair ModelPair, tier Tier, optTarget OptimizationTarget, semantic, basis string) Decision {
	return Decision{
		Query:              query,
		ChosenTier:         tier,
		ChosenModelName:    pair.Descriptor(tier).Name,
		PredictedSemantic:  semantic,
		OptimizationTarget: optTarget,
		Basis:              basis,
	}
}

func findRoute(routes []SemanticRoute, name string) SemanticRoute {
	for _, r := range routes {
		if r.Name == name {
			return r
		}
	}
	return SemanticRoute{}
}
