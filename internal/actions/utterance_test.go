package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/store"
)

func TestHandleSendSpeechAppendsLogAndOutgoing(t *testing.T) {
	rc, _ := newTestRunContext(t)

	result, err := handleSendSpeech(rc, map[string]any{"content": "hello there"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	logs, err := rc.Memory.ListLog(rc.AgentID, rc.SessionID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "hello there", logs[0].Content)

	require.Len(t, *rc.Outgoing, 1)
	assert.Equal(t, "hello there", (*rc.Outgoing)[0].Content)
}

func TestReplyTargetPrefersSpeakerDM(t *testing.T) {
	rc, _ := newTestRunContext(t)
	rc.SpeakerID = "user-42"

	_, err := handleSendSpeech(rc, map[string]any{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "dm(user-42)", (*rc.Outgoing)[0].Target)
}

func TestReplyTargetFallsBackToChannel(t *testing.T) {
	rc, _ := newTestRunContext(t)

	_, err := handleSendSpeech(rc, map[string]any{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "channel(session-1)", (*rc.Outgoing)[0].Target)
}

func TestHandleBroadcastGuidanceTargetsBroadcast(t *testing.T) {
	rc, _ := newTestRunContext(t)

	_, err := handleBroadcastGuidance(rc, map[string]any{"content": "everyone listen"})
	require.NoError(t, err)
	require.Len(t, *rc.Outgoing, 1)
	assert.Equal(t, "broadcast", (*rc.Outgoing)[0].Target)
}

func TestHandleSendNoreactDoesNotProduceOutgoing(t *testing.T) {
	rc, _ := newTestRunContext(t)

	result, err := handleSendNoreact(rc, map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, *rc.Outgoing)
}

func TestHandleDeclareDoneIncrementsCount(t *testing.T) {
	rc, db := newTestRunContext(t)
	_, err := db.CreateSession("agent-1", store.Session{ID: rc.SessionID})
	require.NoError(t, err)

	result, err := handleDeclareDone(rc, map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Data["done_count"])
}

func TestHandleInnerVoiceIsNotTerminalAndLogsInnerVoiceKind(t *testing.T) {
	rc, _ := newTestRunContext(t)

	result, err := handleInnerVoice(rc, map[string]any{"content": "thinking..."})
	require.NoError(t, err)
	assert.True(t, result.Success)

	logs, err := rc.Memory.ListLog(rc.AgentID, rc.SessionID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "thinking...", logs[0].Content)
}
