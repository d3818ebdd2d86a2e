package completion

import (
	"context"
	"errors"

	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
	"routegate/internal/router"
)

// Driver ties the routing policy to a provider factory and implements the
// availability-mode cross-tier retry. It is a single pure function over its
// inputs: no per-driver mutable state is carried between requests.
type Driver struct {
	Policy      *router.Policy
	NewProvider ProviderFactory
}

// NewDriver builds a Driver using the production adapter registry.
func NewDriver(policy *router.Policy) *Driver {
	return &Driver{Policy: policy, NewProvider: NewProvider}
}

// Complete runs the full per-request flow: decide, materialize, call, and,
// only under optimization_metric=availability, one cross-tier retry on
// failure. It returns the backend response paired with the Decision that
// actually produced it.
func (d *Driver) Complete(
	ctx context.Context,
	messages []ChatMessage,
	pair router.ModelPair,
	optTarget router.OptimizationTarget,
	routes []router.SemanticRoute,
	params PassthroughParams,
) (*Response, router.Decision, error) {
	query := lastUserMessage(messages)

	decision, err := d.Policy.Decide(ctx, query, pair, optTarget, routes)
	if err != nil {
		return nil, router.Decision{}, err
	}

	resp, err := d.call(ctx, decision, pair, messages, params)
	if err == nil {
		return resp, decision, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, decision, gwerrors.NewDeadlineExceededError(err, "inbound deadline elapsed during backend call")
	}

	if optTarget != router.OptAvailability {
		return nil, decision, err
	}

	select {
	case <-ctx.Done():
		return nil, decision, gwerrors.NewDeadlineExceededError(ctx.Err(), "inbound deadline elapsed during availability fallback")
	default:
	}

	logging.CompletionLogger.Warn("preferred tier %s failed (%v), retrying opposite tier for availability", decision.ChosenTier, err)
	fallback := decision.WithFallback(pair)
	resp, err = d.call(ctx, fallback, pair, messages, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fallback, gwerrors.NewDeadlineExceededError(err, "inbound deadline elapsed during availability fallback")
		}
		return nil, fallback, gwerrors.NewUpstreamError(err, "both tiers failed under availability fallback", 0)
	}
	return resp, fallback, nil
}

func (d *Driver) call(ctx context.Context, decision router.Decision, pair router.ModelPair, messages []ChatMessage, params PassthroughParams) (*Response, error) {
	desc := pair.Descriptor(decision.ChosenTier)
	provider, err := d.NewProvider(desc)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to construct provider adapter")
	}
	return provider.Complete(ctx, messages, params)
}

func lastUserMessage(messages []ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
