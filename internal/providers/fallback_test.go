package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

func TestFallbackChainFallsThroughOnRetriableError(t *testing.T) {
	chain := NewFallbackChain(NewCooldownTracker(time.Minute))
	candidates := []Candidate{{Provider: "anthropic", Model: "claude-sonnet-4-5"}, {Provider: "openai", Model: "gpt-5"}}

	result, err := chain.Execute(context.Background(), candidates, func(_ context.Context, provider, model string) (*ChatResponse, error) {
		if provider == "anthropic" {
			return nil, &errs.RouterError{Provider: provider, Model: model, Retriable: true}
		}
		return &ChatResponse{Content: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.Len(t, result.Attempts, 2)
	assert.Error(t, result.Attempts[0].Err)
}

func TestFallbackChainStopsOnNonRetriableError(t *testing.T) {
	chain := NewFallbackChain(NewCooldownTracker(time.Minute))
	candidates := []Candidate{{Provider: "anthropic", Model: "claude-sonnet-4-5"}, {Provider: "openai", Model: "gpt-5"}}
	calls := 0

	_, err := chain.Execute(context.Background(), candidates, func(_ context.Context, provider, model string) (*ChatResponse, error) {
		calls++
		return nil, &errs.RouterError{Provider: provider, Model: model, Retriable: false}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "the second candidate must not be tried after a non-retriable failure")
}

func TestFallbackChainSkipsCoolingDownCandidate(t *testing.T) {
	cooldown := NewCooldownTracker(time.Minute)
	cooldown.MarkFailed("anthropic", "claude-sonnet-4-5")
	chain := NewFallbackChain(cooldown)
	candidates := []Candidate{{Provider: "anthropic", Model: "claude-sonnet-4-5"}, {Provider: "openai", Model: "gpt-5"}}

	result, err := chain.Execute(context.Background(), candidates, func(_ context.Context, provider, model string) (*ChatResponse, error) {
		return &ChatResponse{Content: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.True(t, result.Attempts[0].Skipped)
}

func TestFallbackChainExhaustedReturnsError(t *testing.T) {
	chain := NewFallbackChain(NewCooldownTracker(time.Minute))
	candidates := []Candidate{{Provider: "anthropic", Model: "claude-sonnet-4-5"}}

	_, err := chain.Execute(context.Background(), candidates, func(_ context.Context, provider, model string) (*ChatResponse, error) {
		return nil, &errs.RouterError{Provider: provider, Model: model, Retriable: true}
	})

	require.Error(t, err)
}

func TestResolveCandidatesAppliesCompatibilityMapAndDedupes(t *testing.T) {
	primary := ModelRef{Provider: "anthropic", Model: "claude-sonnet-4-5"}
	compat := map[string]map[string]string{
		"openai": {"claude-sonnet-4-5": "gpt-5"},
		"local":  {}, // no mapping entry for this model, provider is skipped
	}

	got := ResolveCandidates(primary, []string{"anthropic", "openai", "local"}, compat)

	assert.Equal(t, []Candidate{
		{Provider: "anthropic", Model: "claude-sonnet-4-5"},
		{Provider: "openai", Model: "gpt-5"},
	}, got)
}

func TestCooldownTrackerExpiresAfterDuration(t *testing.T) {
	tracker := NewCooldownTracker(10 * time.Millisecond)
	tracker.MarkFailed("openai", "gpt-5")
	assert.True(t, tracker.InCooldown("openai", "gpt-5"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, tracker.InCooldown("openai", "gpt-5"))
}

func TestCooldownTrackerMarkGoodClears(t *testing.T) {
	tracker := NewCooldownTracker(time.Minute)
	tracker.MarkFailed("openai", "gpt-5")
	tracker.MarkGood("openai", "gpt-5")
	assert.False(t, tracker.InCooldown("openai", "gpt-5"))
}
