package skills

import (
	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/store"
)

// Manager exposes the runtime skill operations the reasoning loop and its
// learning actions call (spec.md §4.6).
type Manager struct {
	db *store.DB
}

// NewManager wraps a persistence handle in a skill Manager.
func NewManager(db *store.DB) *Manager {
	return &Manager{db: db}
}

// Seed persists every bundled skill not already present for agentID. Called
// once at agent creation.
func (m *Manager) Seed(agentID string, bundled []Bundled) error {
	existing, err := m.db.ListSkills(agentID, false)
	if err != nil {
		return err
	}
	byName := make(map[string]bool, len(existing))
	for _, s := range existing {
		byName[s.Name] = true
	}
	for _, b := range bundled {
		if byName[b.Name] {
			continue
		}
		if _, err := m.db.SaveSkill(ToStoreSkill(agentID, b)); err != nil {
			return err
		}
	}
	return nil
}

// ActiveSkills returns the enabled skill set for an agent.
func (m *Manager) ActiveSkills(agentID string) ([]store.Skill, error) {
	return m.db.ListSkills(agentID, true)
}

// ActionNames returns the union of action names exposed by an agent's
// active skills, deduplicated, satisfying the invariant in spec.md §8.4
// that the exposed catalog is exactly this union with no duplicates.
func ActionNames(active []store.Skill) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range active {
		for _, a := range s.Actions {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// SetActive toggles a skill's active flag.
func (m *Manager) SetActive(agentID, skillID string, active bool) error {
	return m.db.SetSkillActive(agentID, skillID, active)
}

// RecordUsage increments a skill's usage counter after the loop invokes one
// of its actions.
func (m *Manager) RecordUsage(agentID, skillID string) error {
	return m.db.RecordSkillUsage(agentID, skillID, nil)
}

// AcquiredSkill is the shape produced by the learning action group
// (learn_from_experience, learn_from_peer, reflect_and_learn,
// create_my_skill) before it is persisted.
type AcquiredSkill struct {
	Name             string
	Description      string
	SituationPattern string
	Guidance         string
	Actions          []string
	Source           store.SkillSource
}

// Acquire persists a new runtime-created skill, active immediately.
func (m *Manager) Acquire(agentID string, a AcquiredSkill) (store.Skill, error) {
	if a.Name == "" {
		return store.Skill{}, &errs.ActionError{Kind: errs.ActionErrorSchema, Action: "acquire_skill", Detail: "skill name required"}
	}
	return m.db.SaveSkill(store.Skill{
		AgentID:          agentID,
		Name:             a.Name,
		Description:      a.Description,
		SituationPattern: a.SituationPattern,
		Guidance:         a.Guidance,
		Actions:          a.Actions,
		Source:           a.Source,
		Active:           true,
	})
}
