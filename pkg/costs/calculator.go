package costs

import (
	"fmt"
	"strings"
	"sync"

	"hookly/helios/pkg/config"
)

// Calculator estimates generation costs from token counts using the
// configured pricing tables. It is thread-safe and supports hot-reload of
// pricing configuration.
type Calculator struct {
	// pricing maps provider name to model name to per-1K-token rates
	pricing map[string]map[string]config.ModelPricing

	// mu protects the pricing table for concurrent access
	mu sync.RWMutex
}

// Estimate contains a cost estimate for a single generation in USD.
type Estimate struct {
	// PromptCost is the cost for input tokens in USD.
	PromptCost float64

	// CompletionCost is the cost for output tokens in USD.
	CompletionCost float64

	// TotalCost is the total cost in USD.
	TotalCost float64

	// Provider is the provider the estimate was priced against.
	Provider string

	// Model is the model the estimate was priced against.
	Model string
}

// Pricing contains the resolved per-1K-token rates for a provider/model.
type Pricing struct {
	// Provider is the provider name.
	Provider string

	// Model is the model identifier.
	Model string

	// PromptCostPer1KTokens is the cost per 1000 input tokens in USD.
	PromptCostPer1KTokens float64

	// CompletionCostPer1KTokens is the cost per 1000 output tokens in USD.
	CompletionCostPer1KTokens float64
}

// NewCalculator creates a cost calculator with the given pricing tables.
func NewCalculator(pricing map[string]map[string]config.ModelPricing) *Calculator {
	return &Calculator{pricing: pricing}
}

// EstimateGenerationCost estimates the cost of a generation from token
// counts. This is a pure function of the current pricing table; it has no
// side effects and is safe to call on the admission hot path.
//
// An empty model resolves through the provider's "default" entry.
func (c *Calculator) EstimateGenerationCost(provider, model string, inputTokens, outputTokens int) (*Estimate, error) {
	pricing, err := c.GetPricing(provider, model)
	if err != nil {
		return nil, err
	}

	est := &Estimate{
		Provider: provider,
		Model:    model,
	}
	est.PromptCost = tokenCost(inputTokens, pricing.PromptCostPer1KTokens)
	est.CompletionCost = tokenCost(outputTokens, pricing.CompletionCostPer1KTokens)
	est.TotalCost = est.PromptCost + est.CompletionCost

	return est, nil
}

// GetPricing resolves pricing for a provider and model.
// It tries exact match, then model prefix match, then the default fallback.
func (c *Calculator) GetPricing(provider, model string) (*Pricing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if model == "" {
		model = "default"
	}

	if providerPricing, ok := c.pricing[provider]; ok {
		if mp, ok := providerPricing[model]; ok {
			return resolved(provider, model, mp), nil
		}

		// Longest prefix match (e.g., "gpt-4" matches "gpt-4-0613").
		var best string
		for pattern := range providerPricing {
			if pattern != "default" && strings.HasPrefix(model, pattern) && len(pattern) > len(best) {
				best = pattern
			}
		}
		if best != "" {
			return resolved(provider, model, providerPricing[best]), nil
		}

		if mp, ok := providerPricing["default"]; ok {
			return resolved(provider, model, mp), nil
		}
	}

	// Global fallback.
	if defaultProvider, ok := c.pricing["default"]; ok {
		if mp, ok := defaultProvider["default"]; ok {
			return resolved(provider, model, mp), nil
		}
	}

	return nil, fmt.Errorf("no pricing found for provider %q model %q", provider, model)
}

// UpdatePricing replaces the pricing tables (hot-reload support).
// This is thread-safe and can be called while the calculator is in use.
func (c *Calculator) UpdatePricing(pricing map[string]map[string]config.ModelPricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing = pricing
}

func resolved(provider, model string, mp config.ModelPricing) *Pricing {
	return &Pricing{
		Provider:                  provider,
		Model:                     model,
		PromptCostPer1KTokens:     mp.Prompt,
		CompletionCostPer1KTokens: mp.Completion,
	}
}

// tokenCost calculates the cost for a token count at a per-1K-token rate.
func tokenCost(tokens int, costPer1K float64) float64 {
	if tokens <= 0 {
		return 0.0
	}
	return (float64(tokens) / 1000.0) * costPer1K
}
