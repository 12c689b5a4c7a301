package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/override"
	"github.com/sipeed/picoclaw-core/internal/providers"
)

func TestHandleSelectLLMRejectsUnknownAlias(t *testing.T) {
	rc, _ := newTestRunContext(t)

	_, err := handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "not-in-set", "duration": "this_turn"})
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorPermission, actionErr.Kind)
}

func TestHandleSelectLLMSetsOverride(t *testing.T) {
	rc, _ := newTestRunContext(t)

	result, err := handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "fast", "duration": "this_turn"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	model, ok := rc.Override.Resolve(providers.PurposeConversation)
	require.True(t, ok)
	assert.Equal(t, "fast", model)

	// this_turn override is consumed after one read.
	_, ok = rc.Override.Resolve(providers.PurposeConversation)
	assert.False(t, ok)
}

func TestHandleSelectLLMThisTurnDoesNotPersist(t *testing.T) {
	rc, db := newTestRunContext(t)

	_, err := handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "fast", "duration": "this_turn"})
	require.NoError(t, err)

	overrides, err := db.LoadModelOverrides(rc.AgentID, rc.SessionID)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestHandleSelectLLMThisSessionPersistsScopedToSession(t *testing.T) {
	rc, db := newTestRunContext(t)

	result, err := handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "fast", "duration": "this_session"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	overrides, err := db.LoadModelOverrides(rc.AgentID, rc.SessionID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "fast", overrides[0].Model)
	assert.Equal(t, "this_session", overrides[0].Duration)

	// A different session for the same agent must not see it.
	other, err := db.LoadModelOverrides(rc.AgentID, "session-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHandleSelectLLMPermanentPersistsAcrossSessions(t *testing.T) {
	rc, db := newTestRunContext(t)

	_, err := handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "smart", "duration": "permanent"})
	require.NoError(t, err)

	overrides, err := db.LoadModelOverrides(rc.AgentID, "some-other-session")
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "smart", overrides[0].Model)
	assert.Equal(t, "permanent", overrides[0].Duration)
}

func TestHandleSelectLLMSessionOverrideWinsOverPermanent(t *testing.T) {
	rc, db := newTestRunContext(t)

	_, err := handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "smart", "duration": "permanent"})
	require.NoError(t, err)
	_, err = handleSelectLLM(rc, map[string]any{"purpose": "conversation", "model_alias": "fast", "duration": "this_session"})
	require.NoError(t, err)

	overrides, err := db.LoadModelOverrides(rc.AgentID, rc.SessionID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "fast", overrides[0].Model)
}

func TestHandleEvaluateResponseRequiresPriorMetric(t *testing.T) {
	rc, _ := newTestRunContext(t)

	_, err := handleEvaluateResponse(rc, map[string]any{"quality_score": 0.9, "task_success": true, "evaluation": "good"})
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorPrecondition, actionErr.Kind)
}

func TestHandleEvaluateResponseUpdatesMetric(t *testing.T) {
	rc, db := newTestRunContext(t)
	id, err := db.RecordMetric(providers.Metric{AgentID: "agent-1", Provider: "anthropic", Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	rc.LastMetricsID = &id

	result, err := handleEvaluateResponse(rc, map[string]any{"quality_score": 0.75, "task_success": true, "evaluation": "solid"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, id, result.Data["metric_id"])
}

func TestHandleAnalyzeUsageAggregatesAcrossModels(t *testing.T) {
	rc, db := newTestRunContext(t)
	_, err := db.RecordMetric(providers.Metric{AgentID: "agent-1", Provider: "anthropic", Model: "claude-sonnet-4-5", InputTokens: 10, OutputTokens: 5, CostUSD: 0.01})
	require.NoError(t, err)
	_, err = db.RecordMetric(providers.Metric{AgentID: "agent-1", Provider: "openai", Model: "gpt-5", InputTokens: 10, OutputTokens: 5, CostUSD: 0.02})
	require.NoError(t, err)

	result, err := handleAnalyzeUsage(rc, map[string]any{"period": "all"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Data["total_calls"])
	byModel := result.Data["by_model"].([]map[string]any)
	assert.Len(t, byModel, 2)
}

func TestHandleAnalyzeUsageNoDataIsEmptySummary(t *testing.T) {
	rc, _ := newTestRunContext(t)

	result, err := handleAnalyzeUsage(rc, map[string]any{"period": "last_hour"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["total_calls"])
	assert.Empty(t, result.Data["recommendations"])
}

func TestHandleSaveInsightThenRecallExperiences(t *testing.T) {
	rc, _ := newTestRunContext(t)

	saveResult, err := handleSaveInsight(rc, map[string]any{
		"situation": "long document summarization", "observation": "truncated past 40k tokens",
		"recommendation": "chunk the input first", "purpose": "summarization", "model": "gpt-5",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saveResult.Data["note_id"])

	recallResult, err := handleRecallExperiences(rc, map[string]any{"purpose": "summarization"})
	require.NoError(t, err)
	notes := recallResult.Data["notes"].([]map[string]any)
	require.Len(t, notes, 1)
	assert.Equal(t, "chunk the input first", notes[0]["recommendation"])
}

func TestHandleOptimizeSelectionNoRecordsReturnsNilSuggestion(t *testing.T) {
	rc, _ := newTestRunContext(t)

	result, err := handleOptimizeSelection(rc, map[string]any{"goal": "minimize_cost"})
	require.NoError(t, err)
	assert.False(t, result.Data["applied"].(bool))
	assert.Nil(t, result.Data["suggested_model"])
}

func TestHandleOptimizeSelectionPicksCheapestUnderMinQuality(t *testing.T) {
	rc, db := newTestRunContext(t)
	_, err := db.RecordMetric(providers.Metric{AgentID: "agent-1", Provider: "anthropic", Model: "expensive", CostUSD: 1.0})
	require.NoError(t, err)
	_, err = db.RecordMetric(providers.Metric{AgentID: "agent-1", Provider: "openai", Model: "cheap", CostUSD: 0.1})
	require.NoError(t, err)
	quality := 0.9
	_ = quality

	result, err := handleOptimizeSelection(rc, map[string]any{"goal": "minimize_cost"})
	require.NoError(t, err)
	assert.Equal(t, "cheap", result.Data["suggested_model"])
}

func TestOverrideDurationConstantsMatchActionEnum(t *testing.T) {
	assert.Equal(t, override.ThisTurn, override.Duration("this_turn"))
	assert.Equal(t, override.ThisSession, override.Duration("this_session"))
	assert.Equal(t, override.Permanent, override.Duration("permanent"))
}
