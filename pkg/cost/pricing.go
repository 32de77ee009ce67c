package cost

import "fmt"

// Pricing is a model's per-million-token rate.
type Pricing struct {
	Prompt     float64 // USD per 1M prompt tokens
	Completion float64 // USD per 1M completion tokens
}

// defaultPricing is a small built-in table covering the models this
// project is expected to run against. Callers that need a live catalog
// should register rates with RegisterPricing before tracking calls.
var defaultPricing = map[string]Pricing{
	"claude-opus-4":   {Prompt: 15.00, Completion: 75.00},
	"claude-sonnet-4": {Prompt: 3.00, Completion: 15.00},
	"claude-haiku-4":  {Prompt: 0.80, Completion: 4.00},
	"gpt-4o":          {Prompt: 2.50, Completion: 10.00},
	"gpt-4o-mini":     {Prompt: 0.15, Completion: 0.60},
}

// PricingTable resolves a model id to its per-token rate. CostCalculator
// uses one to convert token counts into dollars.
type PricingTable struct {
	rates map[string]Pricing
}

// NewPricingTable returns a table seeded with the built-in defaults.
func NewPricingTable() *PricingTable {
	rates := make(map[string]Pricing, len(defaultPricing))
	for k, v := range defaultPricing {
		rates[k] = v
	}
	return &PricingTable{rates: rates}
}

// Register adds or overrides the pricing for a model id.
func (t *PricingTable) Register(modelID string, pricing Pricing) {
	t.rates[modelID] = pricing
}

// CalculateCostFromTokens converts token counts to a dollar amount using
// the registered per-million rate for modelID.
func (t *PricingTable) CalculateCostFromTokens(modelID string, promptTokens, completionTokens int) (float64, error) {
	pricing, ok := t.rates[modelID]
	if !ok {
		return 0, fmt.Errorf("cost: no pricing registered for model %q", modelID)
	}
	promptCost := (float64(promptTokens) / 1_000_000) * pricing.Prompt
	completionCost := (float64(completionTokens) / 1_000_000) * pricing.Completion
	return promptCost + completionCost, nil
}
