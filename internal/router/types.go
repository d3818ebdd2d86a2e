// Package router implements the routing decision engine: given a user
// query, a pair of candidate backend models, an optional optimization
// target, and an optional set of semantic routes, it decides which backend
// a request should be forwarded to and records why.
package router

import (
	"fmt"

	gwerrors "routegate/internal/errors"
)

// Tier names one side of a ModelPair.
type Tier string

const (
	TierStrong Tier = "strong"
	TierWeak   Tier = "weak"
)

// Opposite returns the other tier of a pair.
func (t Tier) Opposite() Tier {
	if t == TierStrong {
		return TierWeak
	}
	return TierStrong
}

// ModelDescriptor identifies a backend. It is immutable once constructed;
// callers build a new value rather than mutating one in place.
type ModelDescriptor struct {
	Name                string
	Provider            string
	BaseURL             string
	Credential          string
	SimulatedThroughput float64
}

// WireModel returns the model identifier the backend expects on the wire:
// "<provider>/<name>" when a provider prefix is set, else bare "<name>".
func (d ModelDescriptor) WireModel() string {
	if d.Provider == "" {
		return d.Name
	}
	return fmt.Sprintf("%s/%s", d.Provider, d.Name)
}

func (d ModelDescriptor) identity() string {
	return d.Provider + "/" + d.Name
}

// ModelPair is the per-request pair of candidate backends. There is no
// global model registry; every request carries its own pair.
type ModelPair struct {
	Strong ModelDescriptor
	Weak   ModelDescriptor
}

// Validate enforces strong != weak by identity (provider+name).
func (p ModelPair) Validate() error {
	if p.Strong.identity() == p.Weak.identity() {
		return gwerrors.NewValidationError(nil, "strong and weak models must be distinct")
	}
	return nil
}

// Descriptor returns the descriptor for the named tier.
func (p ModelPair) Descriptor(tier Tier) ModelDescriptor {
	if tier == TierStrong {
		return p.Strong
	}
	return p.Weak
}

// SemanticRoute is a named cluster of example utterances whose match implies
// a preferred tier.
type SemanticRoute struct {
	Name       string
	TargetTier Tier
	Utterances []string
}

// OptimizationTarget is one of the enumerated optimization preferences.
type OptimizationTarget string

const (
	OptPerformance  OptimizationTarget = "performance"
	OptCost         OptimizationTarget = "cost"
	OptLatency      OptimizationTarget = "latency"
	OptAvailability OptimizationTarget = "availability"
)

// ValidOptimizationTarget reports whether t is one of the known targets.
func ValidOptimizationTarget(t OptimizationTarget) bool {
	switch t {
	case OptPerformance, OptCost, OptLatency, OptAvailability:
		return true
	default:
		return false
	}
}

// Decision is the immutable record emitted by the Routing Policy describing
// which tier was chosen and why. One Decision per completed request; it is
// never mutated after the completion call returns to the caller.
type Decision struct {
	Query              string
	ChosenTier         Tier
	ChosenModelName    string
	PredictedSemantic  string             // empty means no semantic match fired
	OptimizationTarget OptimizationTarget // empty means none was supplied
	Basis              string
}

// WithFallback returns a new Decision describing an availability-mode
// cross-tier retry: the tier flips and Basis records why. The original
// Decision is left untouched.
func (d Decision) WithFallback(pair ModelPair) Decision {
	newTier := d.ChosenTier.Opposite()
	return Decision{
		Query:              d.Query,
		ChosenTier:         newTier,
		ChosenModelName:    pair.Descriptor(newTier).Name,
		PredictedSemantic:  d.PredictedSemantic,
		OptimizationTarget: d.OptimizationTarget,
		Basis:              "fallback:availability (preferred model failed)",
	}
}
