package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/logging"
)

// Candidate is one (provider, model) to try in a fallback chain.
type Candidate struct {
	Provider string
	Model    string
}

// Attempt records the outcome of trying one candidate.
type Attempt struct {
	Candidate Candidate
	Err       error
	Duration  time.Duration
	Skipped   bool
}

// FallbackChain tries an ordered candidate list, skipping candidates in
// cooldown and stopping at the first non-retriable error (spec.md §4.2).
type FallbackChain struct {
	cooldown *CooldownTracker
}

// NewFallbackChain builds a chain backed by the given cooldown tracker.
func NewFallbackChain(cooldown *CooldownTracker) *FallbackChain {
	return &FallbackChain{cooldown: cooldown}
}

// Result is the outcome of a successful Execute call.
type Result struct {
	Response *ChatResponse
	Provider string
	Model    string
	Attempts []Attempt
}

// Execute runs candidates in order via run, until one succeeds or the
// chain is exhausted. context.Canceled aborts immediately with no further
// attempts. Non-retriable RouterErrors abort immediately without trying
// the next candidate.
func (fc *FallbackChain) Execute(
	ctx context.Context,
	candidates []Candidate,
	run func(ctx context.Context, provider, model string) (*ChatResponse, error),
) (*Result, error) {
	if len(candidates) == 0 {
		return nil, &errs.ConfigError{Detail: "no provider candidates configured"}
	}

	result := &Result{Attempts: make([]Attempt, 0, len(candidates))}

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if fc.cooldown != nil && fc.cooldown.InCooldown(cand.Provider, cand.Model) {
			result.Attempts = append(result.Attempts, Attempt{Candidate: cand, Skipped: true})
			continue
		}

		start := time.Now()
		resp, err := run(ctx, cand.Provider, cand.Model)
		duration := time.Since(start)
		result.Attempts = append(result.Attempts, Attempt{Candidate: cand, Err: err, Duration: duration})

		if err == nil {
			if fc.cooldown != nil {
				fc.cooldown.MarkGood(cand.Provider, cand.Model)
			}
			result.Response = resp
			result.Provider = cand.Provider
			result.Model = cand.Model
			return result, nil
		}

		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		var rerr *errs.RouterError
		if errors.As(err, &rerr) && !rerr.Retriable {
			logging.WarnCF("router", "non-retriable error, aborting fallback chain",
				map[string]any{"provider": cand.Provider, "model": cand.Model, "error": err.Error()})
			return nil, err
		}

		if fc.cooldown != nil {
			fc.cooldown.MarkFailed(cand.Provider, cand.Model)
		}
		logging.WarnCF("router", "retriable error, trying next candidate",
			map[string]any{"provider": cand.Provider, "model": cand.Model, "error": err.Error()})
	}

	return nil, fmt.Errorf("fallback chain exhausted after %d attempts", len(result.Attempts))
}

// ResolveCandidates expands a primary alias plus a configured fallback
// provider list into a deduplicated candidate list, following each
// provider's compatibility mapping for the requested model.
func ResolveCandidates(primary ModelRef, fallbackProviders []string, compat map[string]map[string]string) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate

	add := func(provider, model string) {
		key := provider + "/" + model
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Candidate{Provider: provider, Model: model})
	}

	add(primary.Provider, primary.Model)

	for _, provider := range fallbackProviders {
		if provider == primary.Provider {
			continue
		}
		if mapped, ok := compat[provider][primary.Model]; ok {
			add(provider, mapped)
		}
		// No mapping entry means this provider is skipped for this model,
		// per spec.md §4.2's "if mapping is missing, the provider is skipped".
	}

	return out
}
