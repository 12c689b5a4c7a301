package actions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/memory"
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/override"
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
	"github.com/sipeed/picoclaw-core/internal/workspace"
)

// newTestRunContext wires a fresh in-memory-backed RunContext for one test,
// mirroring how cmd/picoclaw-core assembles the real one at startup.
func newTestRunContext(t *testing.T) (*RunContext, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureAgent("agent-1"))

	ws, err := workspace.New(t.TempDir(), "agent-1", 1<<20)
	require.NoError(t, err)

	outgoing := []messages.OutgoingMessage{}
	rc := &RunContext{
		Ctx:               context.Background(),
		AgentID:           "agent-1",
		AgentName:         "Nova",
		SessionID:         "session-1",
		TurnNumber:        1,
		DB:                db,
		Workspace:         ws,
		Memory:            memory.New(db),
		Skills:            skills.NewManager(db),
		Override:          override.NewCell(),
		SelectableAliases: []string{"fast", "smart"},
		Outgoing:          &outgoing,
	}
	return rc, db
}
