package providers

// BuildAdapters constructs the standard adapter set from provider
// credentials. Any provider with an empty API key is still registered (for
// "local" endpoints that need no key) unless apiBase is also empty, in
// which case it is skipped — the router then treats calls to it as a
// ConfigError via the fallback chain's "no adapter registered" path.
func BuildAdapters(anthropicKey, anthropicBase, openaiKey, openaiBase, localKey, localBase string) map[string]Adapter {
	adapters := map[string]Adapter{}

	adapters["anthropic"] = NewAnthropicAdapter(anthropicKey, anthropicBase)

	adapters["openai"] = NewOpenAICompatAdapter("openai", openaiKey, openaiBase, []ModelCapability{
		{Model: "gpt-5", ToolCalling: true, Vision: true},
		{Model: "gpt-5-mini", ToolCalling: true, Vision: false},
	})

	if localBase != "" {
		adapters["local"] = NewOpenAICompatAdapter("local", localKey, localBase, []ModelCapability{
			{Model: "default", ToolCalling: true, Vision: false},
		})
	}

	return adapters
}

// DefaultCompatibilityMap maps a model requested on one provider to the
// closest equivalent on a fallback provider, used by ResolveCandidates
// (spec.md §4.2's "per-provider compatibility table"). Absent entries mean
// that fallback provider is skipped for that model.
func DefaultCompatibilityMap() map[string]map[string]string {
	return map[string]map[string]string{
		"anthropic": {
			"gpt-5":      "claude-sonnet-4-5",
			"gpt-5-mini": "claude-haiku-4-5",
		},
		"openai": {
			"claude-opus-4-6":   "gpt-5",
			"claude-sonnet-4-5": "gpt-5",
			"claude-haiku-4-5":  "gpt-5-mini",
		},
	}
}
