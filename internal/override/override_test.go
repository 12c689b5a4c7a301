package override

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sipeed/picoclaw-core/internal/providers"
)

func TestResolveWithNoOverrideIsAbsent(t *testing.T) {
	c := NewCell()

	_, ok := c.Resolve(providers.PurposeThinking)
	assert.False(t, ok)
}

func TestThisTurnOverrideIsConsumedOnRead(t *testing.T) {
	c := NewCell()
	c.Set(providers.PurposeThinking, "openai:gpt-5", ThisTurn)

	model, ok := c.Resolve(providers.PurposeThinking)
	assert.True(t, ok)
	assert.Equal(t, "openai:gpt-5", model)

	_, ok = c.Resolve(providers.PurposeThinking)
	assert.False(t, ok, "a this_turn override must not survive a second Resolve call")
}

func TestThisSessionOverridePersists(t *testing.T) {
	c := NewCell()
	c.Set(providers.PurposeConversation, "anthropic:claude-haiku-4-5", ThisSession)

	for i := 0; i < 3; i++ {
		model, ok := c.Resolve(providers.PurposeConversation)
		assert.True(t, ok)
		assert.Equal(t, "anthropic:claude-haiku-4-5", model)
	}
}

func TestPermanentOverridePersists(t *testing.T) {
	c := NewCell()
	c.Set(providers.PurposeAnalysis, "openai:gpt-5-mini", Permanent)

	for i := 0; i < 3; i++ {
		_, ok := c.Resolve(providers.PurposeAnalysis)
		assert.True(t, ok)
	}
}

func TestOverridesAreScopedByPurpose(t *testing.T) {
	c := NewCell()
	c.Set(providers.PurposeThinking, "openai:gpt-5", Permanent)

	_, ok := c.Resolve(providers.PurposeConversation)
	assert.False(t, ok)
}
