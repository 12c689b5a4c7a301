package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

// SaveModelExperienceNote persists an observation written by
// save_model_insight (spec.md §4.6). ID is generated if empty.
func (db *DB) SaveModelExperienceNote(n ModelExperienceNote) (ModelExperienceNote, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	err := db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO model_experience_notes (id, agent_id, situation, observation, recommendation, purpose, model, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.AgentID, n.Situation, n.Observation, n.Recommendation, n.Purpose, n.Model,
			n.CreatedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return ModelExperienceNote{}, &errs.PersistenceError{Op: "SaveModelExperienceNote", Cause: err}
	}
	return n, nil
}

// RecallModelExperienceNotes returns notes for agentID, optionally filtered
// to a purpose and/or model (empty string means unfiltered), most recent
// first, for recall_model_experiences.
func (db *DB) RecallModelExperienceNotes(agentID, purpose, model string, limit int) ([]ModelExperienceNote, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, agent_id, situation, observation, recommendation, purpose, model, created_at
	          FROM model_experience_notes WHERE agent_id = ?`
	args := []any{agentID}
	if purpose != "" {
		query += ` AND purpose = ?`
		args = append(args, purpose)
	}
	if model != "" {
		query += ` AND model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "RecallModelExperienceNotes", Cause: err}
	}
	defer rows.Close()

	var out []ModelExperienceNote
	for rows.Next() {
		var n ModelExperienceNote
		var createdAt string
		if err := rows.Scan(&n.ID, &n.AgentID, &n.Situation, &n.Observation, &n.Recommendation,
			&n.Purpose, &n.Model, &createdAt); err != nil {
			return nil, &errs.PersistenceError{Op: "RecallModelExperienceNotes", Cause: err}
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "RecallModelExperienceNotes", Cause: err}
	}
	return out, nil
}
