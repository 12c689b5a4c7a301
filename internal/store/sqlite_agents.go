package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/identity"
	"github.com/sipeed/picoclaw-core/internal/persona"
)

// EnsureAgent inserts agentID if it does not already exist. Idempotent.
func (db *DB) EnsureAgent(agentID string) error {
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT OR IGNORE INTO agents (id, created_at) VALUES (?, ?)`,
			agentID, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return &errs.PersistenceError{Op: "EnsureAgent", Cause: err}
		}
		return nil
	})
}

// SavePersona upserts the persona document for an agent.
func (db *DB) SavePersona(agentID string, p persona.Persona) error {
	data, err := json.Marshal(p)
	if err != nil {
		return &errs.PersistenceError{Op: "SavePersona", Cause: err}
	}
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO personas (agent_id, data) VALUES (?, ?)
			 ON CONFLICT(agent_id) DO UPDATE SET data = excluded.data`,
			agentID, string(data),
		)
		if err != nil {
			return &errs.PersistenceError{Op: "SavePersona", Cause: err}
		}
		return nil
	})
}

// LoadPersona returns persona.Default() if no row exists for agentID.
func (db *DB) LoadPersona(agentID string) (persona.Persona, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT data FROM personas WHERE agent_id = ?`, agentID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return persona.Default(), nil
	}
	if err != nil {
		return persona.Persona{}, &errs.PersistenceError{Op: "LoadPersona", Cause: err}
	}
	var p persona.Persona
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return persona.Persona{}, &errs.PersistenceError{Op: "LoadPersona", Cause: err}
	}
	return p, nil
}

// SaveIdentity upserts the identity document for an agent.
func (db *DB) SaveIdentity(agentID string, id identity.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return &errs.PersistenceError{Op: "SaveIdentity", Cause: err}
	}
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO identities (agent_id, data) VALUES (?, ?)
			 ON CONFLICT(agent_id) DO UPDATE SET data = excluded.data`,
			agentID, string(data),
		)
		if err != nil {
			return &errs.PersistenceError{Op: "SaveIdentity", Cause: err}
		}
		return nil
	})
}

// LoadIdentity returns the zero Identity if no row exists for agentID.
func (db *DB) LoadIdentity(agentID string) (identity.Identity, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT data FROM identities WHERE agent_id = ?`, agentID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, nil
	}
	if err != nil {
		return identity.Identity{}, &errs.PersistenceError{Op: "LoadIdentity", Cause: err}
	}
	var id identity.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return identity.Identity{}, &errs.PersistenceError{Op: "LoadIdentity", Cause: err}
	}
	return id, nil
}

// SaveImpression upserts one agent's impression of another for a session.
func (db *DB) SaveImpression(imp Impression) error {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp.UpdatedAt.IsZero() {
		imp.UpdatedAt = time.Now().UTC()
	}
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO impressions (id, observer_agent_id, session_id, target_agent_id, content, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
			imp.ID, imp.ObserverAgentID, imp.SessionID, imp.TargetAgentID, imp.Content,
			imp.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return &errs.PersistenceError{Op: "SaveImpression", Cause: err}
		}
		return nil
	})
}

// ListImpressions returns every impression observerAgentID holds about
// targetAgentID, most recently updated first.
func (db *DB) ListImpressions(observerAgentID, targetAgentID string) ([]Impression, error) {
	rows, err := db.conn.Query(
		`SELECT id, observer_agent_id, session_id, target_agent_id, content, updated_at
		 FROM impressions WHERE observer_agent_id = ? AND target_agent_id = ?
		 ORDER BY updated_at DESC`,
		observerAgentID, targetAgentID,
	)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "ListImpressions", Cause: err}
	}
	defer rows.Close()

	var out []Impression
	for rows.Next() {
		var imp Impression
		var updatedAt string
		if err := rows.Scan(&imp.ID, &imp.ObserverAgentID, &imp.SessionID, &imp.TargetAgentID, &imp.Content, &updatedAt); err != nil {
			return nil, &errs.PersistenceError{Op: "ListImpressions", Cause: err}
		}
		imp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "ListImpressions", Cause: err}
	}
	return out, nil
}
