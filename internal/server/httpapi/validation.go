package httpapi

import (
	"fmt"
	"strings"

	gwerrors "routegate/internal/errors"
	"routegate/internal/router"
)

// toDescriptor splits a "<provider>/<name>" (or bare "<name>") wire model
// identifier into a ModelDescriptor, carrying through the per-request
// credential/base-url overrides.
func toDescriptor(spec modelSpecDTO) router.ModelDescriptor {
	name := spec.Model
	provider := ""
	if idx := strings.Index(spec.Model, "/"); idx > 0 {
		provider = spec.Model[:idx]
		name = spec.Model[idx+1:]
	}
	return router.ModelDescriptor{
		Name:       name,
		Provider:   provider,
		BaseURL:    spec.APIBase,
		Credential: spec.APIKey,
	}
}

// parseModelPair validates and converts the request's models block, a hard
// requirement: missing models, a missing strong/weak field, or
// strong == weak by name all reject with 400.
func parseModelPair(m *modelsDTO) (router.ModelPair, error) {
	if m == nil {
		return router.ModelPair{}, gwerrors.NewValidationError(nil, "models is required")
	}
	if strings.TrimSpace(m.Strong.Model) == "" {
		return router.ModelPair{}, gwerrors.NewValidationError(nil, "models.strong.model is required")
	}
	if strings.TrimSpace(m.Weak.Model) == "" {
		return router.ModelPair{}, gwerrors.NewValidationError(nil, "models.weak.model is required")
	}

	pair := router.ModelPair{
		Strong: toDescriptor(m.Strong),
		Weak:   toDescriptor(m.Weak),
	}
	if err := pair.Validate(); err != nil {
		return router.ModelPair{}, err
	}
	return pair, nil
}

// parseOptimizationTarget validates the optional optimization_metric field.
func parseOptimizationTarget(raw string) (router.OptimizationTarget, error) {
	if raw == "" {
		return "", nil
	}
	target := router.OptimizationTarget(raw)
	if !router.ValidOptimizationTarget(target) {
		return "", gwerrors.NewValidationError(nil, fmt.Sprintf("unknown optimization_metric: %q", raw))
	}
	return target, nil
}

// parseSemanticRoutes validates and converts the optional semantics block.
// Duplicate names, empty names, unknown model_type, and empty utterance
// lists all reject with 400.
func parseSemanticRoutes(routes []semanticRouteDTO) ([]router.SemanticRoute, error) {
	if len(routes) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(routes))
	out := make([]router.SemanticRoute, 0, len(routes))
	for _, r := range routes {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, gwerrors.NewValidationError(nil, "semantic route name is required")
		}
		if seen[name] {
			return nil, gwerrors.NewValidationError(nil, fmt.Sprintf("duplicate semantic route name: %s", name))
		}
		seen[name] = true

		var tier router.Tier
		switch r.ModelType {
		case "strong":
			tier = router.TierStrong
		case "weak":
			tier = router.TierWeak
		default:
			return nil, gwerrors.NewValidationError(nil, fmt.Sprintf("semantic route %q has unknown model_type: %q", name, r.ModelType))
		}

		if len(r.Utterances) == 0 {
			return nil, gwerrors.NewValidationError(nil, fmt.Sprintf("semantic route %q must have at least one utterance", name))
		}

		out = append(out, router.SemanticRoute{Name: name, TargetTier: tier, Utterances: r.Utterances})
	}
	return out, nil
}
