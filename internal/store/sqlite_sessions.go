package store

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

// CreateSession inserts a new session row in the active state. ID is
// generated if empty.
func (db *DB) CreateSession(agentID string, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SessionActive
	}
	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return Session{}, &errs.PersistenceError{Op: "CreateSession", Cause: err}
	}

	err = db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO sessions (id, agent_id, mode, theme, phase, turn_counter, status, participants, done_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, agentID, s.Mode, s.Theme, s.Phase, s.TurnCounter, string(s.Status), string(participants), s.DoneCount,
		)
		return err
	})
	if err != nil {
		return Session{}, &errs.PersistenceError{Op: "CreateSession", Cause: err}
	}
	return s, nil
}

// LoadSession fetches one session by id.
func (db *DB) LoadSession(sessionID string) (Session, error) {
	var s Session
	var participants string
	err := db.conn.QueryRow(
		`SELECT id, mode, theme, phase, turn_counter, status, participants, done_count FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&s.ID, &s.Mode, &s.Theme, &s.Phase, &s.TurnCounter, &s.Status, &participants, &s.DoneCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "load_session", Detail: sessionID}
	}
	if err != nil {
		return Session{}, &errs.PersistenceError{Op: "LoadSession", Cause: err}
	}
	_ = json.Unmarshal([]byte(participants), &s.Participants)
	return s, nil
}

// AdvanceTurn increments a session's turn_counter and returns the new value.
func (db *DB) AdvanceTurn(sessionID string) (int, error) {
	var turn int
	err := db.withWrite(func() error {
		_, err := db.conn.Exec(`UPDATE sessions SET turn_counter = turn_counter + 1 WHERE id = ?`, sessionID)
		if err != nil {
			return err
		}
		return db.conn.QueryRow(`SELECT turn_counter FROM sessions WHERE id = ?`, sessionID).Scan(&turn)
	})
	if err != nil {
		return 0, &errs.PersistenceError{Op: "AdvanceTurn", Cause: err}
	}
	return turn, nil
}

// RecordDone increments done_count, used to track how many participants
// have called declare_done in the current phase (spec.md §4.1's quorum
// note — this package only tracks the count; the loop decides quorum).
func (db *DB) RecordDone(sessionID string) (int, error) {
	var count int
	err := db.withWrite(func() error {
		_, err := db.conn.Exec(`UPDATE sessions SET done_count = done_count + 1 WHERE id = ?`, sessionID)
		if err != nil {
			return err
		}
		return db.conn.QueryRow(`SELECT done_count FROM sessions WHERE id = ?`, sessionID).Scan(&count)
	})
	if err != nil {
		return 0, &errs.PersistenceError{Op: "RecordDone", Cause: err}
	}
	return count, nil
}

// SetSessionStatus transitions a session's lifecycle status.
func (db *DB) SetSessionStatus(sessionID string, status SessionStatus) error {
	return db.withWrite(func() error {
		res, err := db.conn.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, string(status), sessionID)
		if err != nil {
			return &errs.PersistenceError{Op: "SetSessionStatus", Cause: err}
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "set_session_status", Detail: sessionID}
		}
		return nil
	})
}
