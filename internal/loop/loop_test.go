package loop

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/actions"
	loopctx "github.com/sipeed/picoclaw-core/internal/context"
	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/memory"
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/providers"
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
	"github.com/sipeed/picoclaw-core/internal/workspace"
)

// scriptedAdapter returns one canned ChatResponse per call, in order,
// looping on the last entry once exhausted, so tests can drive the loop
// through a fixed sequence of assistant turns.
type scriptedAdapter struct {
	responses   []providers.ChatResponse
	calls       int32
	lastModel   atomic.Value
	lastRequest atomic.Value
}

func (a *scriptedAdapter) Name() string                              { return "stub" }
func (a *scriptedAdapter) SupportedModels() []providers.ModelCapability { return nil }
func (a *scriptedAdapter) Health(ctx context.Context) error          { return nil }
func (a *scriptedAdapter) Chat(ctx context.Context, model string, req providers.ChatRequest) (*providers.ChatResponse, error) {
	a.lastModel.Store(model)
	a.lastRequest.Store(req)
	i := atomic.AddInt32(&a.calls, 1) - 1
	if int(i) >= len(a.responses) {
		i = int32(len(a.responses) - 1)
	}
	resp := a.responses[i]
	return &resp, nil
}

type failingAdapter struct{}

func (a *failingAdapter) Name() string                              { return "stub" }
func (a *failingAdapter) SupportedModels() []providers.ModelCapability { return nil }
func (a *failingAdapter) Health(ctx context.Context) error          { return nil }
func (a *failingAdapter) Chat(ctx context.Context, model string, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return nil, &errs.RouterError{Provider: "stub", Model: model, Retriable: false, Cause: errors.New("boom")}
}

func newTestLoop(t *testing.T, adapter providers.Adapter, maxIterations int) *Loop {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureAgent("agent-1"))

	ws, err := workspace.New(t.TempDir(), "agent-1", 1<<20)
	require.NoError(t, err)

	aliases := providers.NewAliasResolver(map[string]string{}, "stub-model", "stub")
	router := providers.NewRouter(map[string]providers.Adapter{"stub": adapter}, aliases, providers.DefaultPricingTable(), db)

	registry := actions.NewStandardRegistry()

	return New(Config{
		AgentID:           "agent-1",
		AgentName:         "Nova",
		MaxIterations:     maxIterations,
		SelectableAliases: []string{"fast"},
		DB:                db,
		Workspace:         ws,
		Router:            router,
		Registry:          registry,
		Memory:            memory.New(db),
		Skills:            skills.NewManager(db),
		Builder:           loopctx.New(),
	})
}

func TestRunNoToolCallsReturnsPlainReply(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{{Content: "hello back"}}}
	l := newTestLoop(t, adapter, 10)

	outcome, err := l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)
	require.Len(t, outcome.Outgoing, 1)
	assert.Equal(t, "hello back", outcome.Outgoing[0].Content)
	assert.False(t, outcome.Exhausted)
}

func TestRunFirstTerminalCallWinsWithinOneResponse(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "1", Name: "send_speech", Arguments: map[string]any{"content": "first"}},
			{ID: "2", Name: "send_speech", Arguments: map[string]any{"content": "second"}},
		}},
	}}
	l := newTestLoop(t, adapter, 10)

	outcome, err := l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)
	require.Len(t, outcome.Outgoing, 1)
	assert.Equal(t, "first", outcome.Outgoing[0].Content)
}

func TestRunNonTerminalToolThenTerminal(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "1", Name: "generate_inner_voice", Arguments: map[string]any{"content": "thinking"}},
		}},
		{ToolCalls: []providers.ToolCall{
			{ID: "2", Name: "send_speech", Arguments: map[string]any{"content": "done thinking"}},
		}},
	}}
	l := newTestLoop(t, adapter, 10)

	outcome, err := l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)
	require.Len(t, outcome.Outgoing, 1)
	assert.Equal(t, "done thinking", outcome.Outgoing[0].Content)
}

func TestRunExhaustsIterationsWithoutError(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "1", Name: "generate_inner_voice", Arguments: map[string]any{"content": "still thinking"}}}},
	}}
	l := newTestLoop(t, adapter, 3)

	outcome, err := l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)
	assert.True(t, outcome.Exhausted)
	assert.Empty(t, outcome.Outgoing)
}

func TestRunPropagatesNonRetriableDispatchError(t *testing.T) {
	l := newTestLoop(t, &failingAdapter{}, 10)

	_, err := l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.Error(t, err)
}

func TestRunCancelledBeforeStartIsReportedAsCancelled(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{{Content: "unreachable"}}}
	l := newTestLoop(t, adapter, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Run(ctx, "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.Error(t, err)
	var cancelled *errs.Cancelled
	require.ErrorAs(t, err, &cancelled)
}

func TestRunReloadsPersistedThisSessionOverrideAcrossInvocations(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureAgent("agent-1"))

	ws, err := workspace.New(t.TempDir(), "agent-1", 1<<20)
	require.NoError(t, err)

	adapter := &scriptedAdapter{responses: []providers.ChatResponse{{Content: "ok"}}}
	aliases := providers.NewAliasResolver(map[string]string{"smart": "stub:smart-model"}, "stub-model", "stub")
	router := providers.NewRouter(map[string]providers.Adapter{"stub": adapter}, aliases, providers.DefaultPricingTable(), db)

	newLoop := func() *Loop {
		return New(Config{
			AgentID:           "agent-1",
			AgentName:         "Nova",
			MaxIterations:     10,
			SelectableAliases: []string{"smart"},
			DB:                db,
			Workspace:         ws,
			Router:            router,
			Registry:          actions.NewStandardRegistry(),
			Memory:            memory.New(db),
			Skills:            skills.NewManager(db),
			Builder:           loopctx.New(),
		})
	}

	// First invocation resolves the default model (no override yet).
	_, err = newLoop().Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "stub-model", adapter.lastModel.Load())

	// A this_session override is persisted independently of this Run call,
	// simulating a prior turn in the same session having invoked select_llm.
	require.NoError(t, db.SaveModelOverride("agent-1", "session-1", providers.PurposeToolCalling, "smart", "this_session"))

	// A fresh Loop for a *new* Run call — the Config carries no in-memory
	// override state of its own — must still pick up the persisted override.
	_, err = newLoop().Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi again", Sender: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "smart-model", adapter.lastModel.Load())

	// A different session for the same agent must not inherit it.
	_, err = newLoop().Run(context.Background(), "session-2", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "stub-model", adapter.lastModel.Load())
}

func TestRunRecordsSkillUsageOnSuccessfulDispatch(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "1", Name: "send_speech", Arguments: map[string]any{"content": "hi"}},
		}},
	}}
	l := newTestLoop(t, adapter, 10)

	saved, err := l.cfg.DB.SaveSkill(store.Skill{
		AgentID: "agent-1", Name: "greeting", Actions: []string{"send_speech"},
		Source: store.SkillBundled, Active: true,
	})
	require.NoError(t, err)

	_, err = l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)

	active, err := l.cfg.DB.ListSkills("agent-1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, saved.ID, active[0].ID)
	assert.Equal(t, 1, active[0].UsageCount)
}

func TestRunDoesNotRecordSkillUsageForActionsNoSkillExposes(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "1", Name: "send_speech", Arguments: map[string]any{"content": "hi"}},
		}},
	}}
	l := newTestLoop(t, adapter, 10)

	_, err := l.cfg.DB.SaveSkill(store.Skill{
		AgentID: "agent-1", Name: "unrelated", Actions: []string{"other_action"},
		Source: store.SkillBundled, Active: true,
	})
	require.NoError(t, err)

	_, err = l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)

	active, err := l.cfg.DB.ListSkills("agent-1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 0, active[0].UsageCount)
}

func TestRunRendersSelectedModelPerPurposeInSystemPrompt(t *testing.T) {
	adapter := &scriptedAdapter{responses: []providers.ChatResponse{{Content: "ok"}}}
	l := newTestLoop(t, adapter, 10)

	_, err := l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)

	req, ok := adapter.lastRequest.Load().(providers.ChatRequest)
	require.True(t, ok)
	require.NotEmpty(t, req.Messages)
	systemPrompt := req.Messages[0].Content

	assert.Contains(t, systemPrompt, "## LLM configuration")
	assert.Contains(t, systemPrompt, "tool_calling: stub:stub-model")
	assert.Contains(t, systemPrompt, "conversation: stub:stub-model")
}

func TestRunRendersPersistedOverrideAsSelectedModel(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureAgent("agent-1"))
	require.NoError(t, db.SaveModelOverride("agent-1", "session-1", providers.PurposeConversation, "smart", "this_session"))

	ws, err := workspace.New(t.TempDir(), "agent-1", 1<<20)
	require.NoError(t, err)

	adapter := &scriptedAdapter{responses: []providers.ChatResponse{{Content: "ok"}}}
	aliases := providers.NewAliasResolver(map[string]string{"smart": "stub:smart-model"}, "stub-model", "stub")
	router := providers.NewRouter(map[string]providers.Adapter{"stub": adapter}, aliases, providers.DefaultPricingTable(), db)

	l := New(Config{
		AgentID: "agent-1", AgentName: "Nova", MaxIterations: 10,
		SelectableAliases: []string{"smart"}, DB: db, Workspace: ws, Router: router,
		Registry: actions.NewStandardRegistry(), Memory: memory.New(db), Skills: skills.NewManager(db),
		Builder: loopctx.New(),
	})

	_, err = l.Run(context.Background(), "session-1", messages.IncomingMessage{Content: "hi", Sender: "user-1"})
	require.NoError(t, err)

	req, ok := adapter.lastRequest.Load().(providers.ChatRequest)
	require.True(t, ok)
	systemPrompt := req.Messages[0].Content
	assert.Contains(t, systemPrompt, "conversation: stub:smart-model")
	assert.Contains(t, systemPrompt, "tool_calling: stub:stub-model")
}

func TestReplyTargetPrefersChannelOverSender(t *testing.T) {
	assert.Equal(t, "channel(room-1)", replyTarget(messages.IncomingMessage{Channel: "room-1", Sender: "user-1"}))
	assert.Equal(t, "dm(user-1)", replyTarget(messages.IncomingMessage{Sender: "user-1"}))
}
