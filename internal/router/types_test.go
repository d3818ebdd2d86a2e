package router

import "testing"

func TestModelDescriptor_WireModel(t *testing.T) {
	withProvider := ModelDescriptor{Name: "gpt-4o", Provider: "openai"}
	if got := withProvider.WireModel(); got != "openai/gpt-4o" {
		t.Errorf("WireModel() = %q, want openai/gpt-4o", got)
	}

	bare := ModelDescriptor{Name: "gpt-4o"}
	if got := bare.WireModel(); got != "gpt-4o" {
		t.Errorf("WireModel() = %q, want gpt-4o", got)
	}
}

func TestModelPair_Validate(t *testing.T) {
	distinct := ModelPair{
		Strong: ModelDescriptor{Name: "gpt-4o", Provider: "openai"},
		Weak:   ModelDescriptor{Name: "llama3:8b", Provider: "ollama"},
	}
	if err := distinct.Validate(); err != nil {
		t.Errorf("expected distinct models to validate, got %v", err)
	}

	same := ModelDescriptor{Name: "gpt-4o", Provider: "openai"}
	identical := ModelPair{Strong: same, Weak: same}
	if err := identical.Validate(); err == nil {
		t.Error("expected identical strong/weak to fail validation")
	}
}

func TestDecision_WithFallback(t *testing.T) {
	pair := ModelPair{
		Strong: ModelDescriptor{Name: "gpt-4o"},
		Weak:   ModelDescriptor{Name: "llama3:8b"},
	}
	original := Decision{
		Query:              "q",
		ChosenTier:         TierStrong,
		ChosenModelName:    "gpt-4o",
		OptimizationTarget: OptAvailability,
		Basis:              "difficulty",
	}

	fb := original.WithFallback(pair)
	if fb.ChosenTier != TierWeak {
		t.Errorf("expected fallback tier weak, got %s", fb.ChosenTier)
	}
	if fb.ChosenModelName != "llama3:8b" {
		t.Errorf("expected fallback model name llama3:8b, got %s", fb.ChosenModelName)
	}
	if fb.Basis != "fallback:availability (preferred model failed)" {
		t.Errorf("unexpected fallback basis: %s", fb.Basis)
	}
	if original.ChosenTier != TierStrong {
		t.Error("WithFallback must not mutate the original decision")
	}
}

func TestTier_Opposite(t *testing.T) {
	if TierStrong.Opposite() != TierWeak {
		t.Error("expected opposite of strong to be weak")
	}
	if TierWeak.Opposite() != TierStrong {
		t.Error("expected opposite of weak to be strong")
	}
}
