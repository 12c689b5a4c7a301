package store

import (
	"time"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/providers"
)

// ModelOverride is one persisted select_llm override row. SessionID is empty
// for a permanent, agent-wide override; non-empty ties it to one session.
type ModelOverride struct {
	SessionID string
	Purpose   providers.Purpose
	Model     string
	Duration  string
}

// SaveModelOverride upserts an override that must survive past the current
// loop invocation (spec.md §4.1's this_session and permanent select_llm
// durations). sessionID is empty for a permanent override.
func (db *DB) SaveModelOverride(agentID, sessionID string, purpose providers.Purpose, model, duration string) error {
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO model_overrides (agent_id, session_id, purpose, model, duration, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(agent_id, session_id, purpose) DO UPDATE SET
			   model = excluded.model, duration = excluded.duration, updated_at = excluded.updated_at`,
			agentID, sessionID, string(purpose), model, duration, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return &errs.PersistenceError{Op: "SaveModelOverride", Cause: err}
		}
		return nil
	})
}

// LoadModelOverrides returns every override in effect for one invocation:
// agent-wide permanent overrides plus this-session overrides scoped to
// sessionID. A session-scoped row takes precedence over a permanent row for
// the same purpose, matching a more specific override winning.
func (db *DB) LoadModelOverrides(agentID, sessionID string) ([]ModelOverride, error) {
	rows, err := db.conn.Query(
		`SELECT session_id, purpose, model, duration FROM model_overrides
		 WHERE agent_id = ? AND (session_id = '' OR session_id = ?)
		 ORDER BY session_id ASC`,
		agentID, sessionID,
	)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "LoadModelOverrides", Cause: err}
	}
	defer rows.Close()

	byPurpose := map[providers.Purpose]ModelOverride{}
	for rows.Next() {
		var o ModelOverride
		var purpose string
		if err := rows.Scan(&o.SessionID, &purpose, &o.Model, &o.Duration); err != nil {
			return nil, &errs.PersistenceError{Op: "LoadModelOverrides", Cause: err}
		}
		o.Purpose = providers.Purpose(purpose)
		// session_id ASC sorts '' (permanent) before the session-specific
		// row, so the second write for the same purpose overwrites it.
		byPurpose[o.Purpose] = o
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "LoadModelOverrides", Cause: err}
	}

	out := make([]ModelOverride, 0, len(byPurpose))
	for _, o := range byPurpose {
		out = append(out, o)
	}
	return out, nil
}

// DeleteSessionModelOverrides removes every this_session override for
// sessionID, e.g. once the session ends. Permanent overrides are untouched.
func (db *DB) DeleteSessionModelOverrides(agentID, sessionID string) error {
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`DELETE FROM model_overrides WHERE agent_id = ? AND session_id = ?`,
			agentID, sessionID,
		)
		if err != nil {
			return &errs.PersistenceError{Op: "DeleteSessionModelOverrides", Cause: err}
		}
		return nil
	})
}
