package store

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

// SaveSkill inserts or replaces a skill row. ID is generated if empty.
func (db *DB) SaveSkill(s Skill) (Skill, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	actions, err := json.Marshal(s.Actions)
	if err != nil {
		return Skill{}, &errs.PersistenceError{Op: "SaveSkill", Cause: err}
	}

	err = db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO skills (id, agent_id, name, description, situation_pattern, guidance, actions, source, usage_count, effectiveness, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name, description = excluded.description,
			   situation_pattern = excluded.situation_pattern, guidance = excluded.guidance,
			   actions = excluded.actions, source = excluded.source,
			   usage_count = excluded.usage_count, effectiveness = excluded.effectiveness,
			   is_active = excluded.is_active`,
			s.ID, s.AgentID, s.Name, s.Description, s.SituationPattern, s.Guidance,
			string(actions), string(s.Source), s.UsageCount, s.Effectiveness, boolToInt(s.Active),
		)
		return err
	})
	if err != nil {
		return Skill{}, &errs.PersistenceError{Op: "SaveSkill", Cause: err}
	}
	return s, nil
}

// ListSkills returns every skill for agentID; activeOnly restricts to
// is_active rows (spec.md §4.6's "active_skills" view).
func (db *DB) ListSkills(agentID string, activeOnly bool) ([]Skill, error) {
	query := `SELECT id, agent_id, name, description, situation_pattern, guidance, actions, source, usage_count, effectiveness, is_active
	          FROM skills WHERE agent_id = ?`
	args := []any{agentID}
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "ListSkills", Cause: err}
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var s Skill
		var actions string
		var active int
		if err := rows.Scan(&s.ID, &s.AgentID, &s.Name, &s.Description, &s.SituationPattern,
			&s.Guidance, &actions, &s.Source, &s.UsageCount, &s.Effectiveness, &active); err != nil {
			return nil, &errs.PersistenceError{Op: "ListSkills", Cause: err}
		}
		_ = json.Unmarshal([]byte(actions), &s.Actions)
		s.Active = active != 0
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "ListSkills", Cause: err}
	}
	return out, nil
}

// SetSkillActive flips a skill's active flag.
func (db *DB) SetSkillActive(agentID, skillID string, active bool) error {
	return db.withWrite(func() error {
		res, err := db.conn.Exec(
			`UPDATE skills SET is_active = ? WHERE id = ? AND agent_id = ?`,
			boolToInt(active), skillID, agentID,
		)
		if err != nil {
			return &errs.PersistenceError{Op: "SetSkillActive", Cause: err}
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "set_skill_active", Detail: skillID}
		}
		return nil
	})
}

// RecordSkillUsage increments a skill's usage_count and optionally updates
// its running effectiveness estimate, matching record_usage from spec.md
// §4.6 (self-management telemetry, not spec-mandated learning).
func (db *DB) RecordSkillUsage(agentID, skillID string, effectiveness *float64) error {
	return db.withWrite(func() error {
		var err error
		if effectiveness != nil {
			_, err = db.conn.Exec(
				`UPDATE skills SET usage_count = usage_count + 1, effectiveness = ? WHERE id = ? AND agent_id = ?`,
				*effectiveness, skillID, agentID,
			)
		} else {
			_, err = db.conn.Exec(
				`UPDATE skills SET usage_count = usage_count + 1 WHERE id = ? AND agent_id = ?`,
				skillID, agentID,
			)
		}
		if err != nil {
			return &errs.PersistenceError{Op: "RecordSkillUsage", Cause: err}
		}
		return nil
	})
}

// DeleteSkill removes a skill by id, scoped to agentID.
func (db *DB) DeleteSkill(agentID, skillID string) error {
	return db.withWrite(func() error {
		res, err := db.conn.Exec(`DELETE FROM skills WHERE id = ? AND agent_id = ?`, skillID, agentID)
		if err != nil {
			return &errs.PersistenceError{Op: "DeleteSkill", Cause: err}
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "delete_skill", Detail: skillID}
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
