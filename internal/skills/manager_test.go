package skills

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureAgent("agent-1"))
	return NewManager(db)
}

func TestSeedSkipsAlreadyPresentNames(t *testing.T) {
	m := newTestManager(t)
	bundled := []Bundled{{Name: "greeting", Description: "hi", Actions: []string{"send_speech"}}}

	require.NoError(t, m.Seed("agent-1", bundled))
	require.NoError(t, m.Seed("agent-1", bundled))

	all, err := m.ActiveSkills("agent-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestActiveSkillsExcludesInactive(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Seed("agent-1", []Bundled{{Name: "greeting", Actions: []string{"send_speech"}}}))

	active, err := m.ActiveSkills("agent-1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, m.SetActive("agent-1", active[0].ID, false))

	active, err = m.ActiveSkills("agent-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestActionNamesDeduplicatesAcrossSkills(t *testing.T) {
	active := []store.Skill{
		{Name: "a", Actions: []string{"send_speech", "ws_read"}},
		{Name: "b", Actions: []string{"ws_read", "declare_done"}},
	}
	names := ActionNames(active)
	assert.ElementsMatch(t, []string{"send_speech", "ws_read", "declare_done"}, names)
}

func TestRecordUsageIncrementsCount(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Seed("agent-1", []Bundled{{Name: "greeting", Actions: []string{"send_speech"}}}))

	active, err := m.ActiveSkills("agent-1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, m.RecordUsage("agent-1", active[0].ID))

	active, err = m.ActiveSkills("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, active[0].UsageCount)
}

func TestAcquireRejectsEmptyName(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Acquire("agent-1", AcquiredSkill{Description: "no name"})
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorSchema, actionErr.Kind)
}

func TestAcquirePersistsActiveSkill(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Acquire("agent-1", AcquiredSkill{Name: "improvised", Actions: []string{"ws_write"}, Source: store.SkillAcquiredViaExperience})
	require.NoError(t, err)
	assert.True(t, s.Active)

	active, err := m.ActiveSkills("agent-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "improvised", active[0].Name)
}
