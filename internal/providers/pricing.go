package providers

import "sync"

// Price is one (provider, model) entry: USD per 1M tokens, plus the
// model's context window for reference in analysis output.
type Price struct {
	InputPer1M  float64
	OutputPer1M float64
	ContextSize int
}

// PricingTable is copy-on-write at startup and read-only thereafter
// (spec.md §5). Missing entries default to zero cost, never an error.
type PricingTable struct {
	mu      sync.RWMutex
	entries map[string]Price
}

func priceKey(provider, model string) string { return provider + "/" + model }

// NewPricingTable builds a pricing table from a static entry list, typically
// loaded once at startup from a config file.
func NewPricingTable(entries map[string]Price) *PricingTable {
	cp := make(map[string]Price, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &PricingTable{entries: cp}
}

// Lookup returns the price for (provider, model), or the zero Price if unknown.
func (t *PricingTable) Lookup(provider, model string) Price {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[priceKey(provider, model)]
}

// EstimateCost applies the pricing formula from spec.md §4.2:
// input_tokens/1e6 * input_price + output_tokens/1e6 * output_price.
func (t *PricingTable) EstimateCost(provider, model string, usage Usage) float64 {
	p := t.Lookup(provider, model)
	return float64(usage.InputTokens)/1e6*p.InputPer1M + float64(usage.OutputTokens)/1e6*p.OutputPer1M
}

// DefaultPricingTable seeds a small set of well-known models so demos and
// tests get non-zero costs without a config file. Unlisted models still
// resolve to zero cost via Lookup's default.
func DefaultPricingTable() *PricingTable {
	return NewPricingTable(map[string]Price{
		priceKey("anthropic", "claude-opus-4-6"):   {InputPer1M: 15, OutputPer1M: 75, ContextSize: 200000},
		priceKey("anthropic", "claude-sonnet-4-5"): {InputPer1M: 3, OutputPer1M: 15, ContextSize: 200000},
		priceKey("anthropic", "claude-haiku-4-5"):  {InputPer1M: 0.8, OutputPer1M: 4, ContextSize: 200000},
		priceKey("openai", "gpt-5"):                {InputPer1M: 5, OutputPer1M: 15, ContextSize: 400000},
		priceKey("openai", "gpt-5-mini"):           {InputPer1M: 0.25, OutputPer1M: 2, ContextSize: 400000},
	})
}
