package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

// UpsertCuratedMemory writes or replaces the fact stored under
// (AgentID, Category). ID is generated if empty.
func (db *DB) UpsertCuratedMemory(m CuratedMemory) (CuratedMemory, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.UpdatedAt = time.Now().UTC()
	err := db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO curated_memories (id, agent_id, category, content, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
			m.ID, m.AgentID, m.Category, m.Content, m.UpdatedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return CuratedMemory{}, &errs.PersistenceError{Op: "UpsertCuratedMemory", Cause: err}
	}
	return m, nil
}

// ListCuratedMemories returns every curated fact for agentID, optionally
// filtered to one category (empty means all).
func (db *DB) ListCuratedMemories(agentID, category string) ([]CuratedMemory, error) {
	query := `SELECT id, agent_id, category, content, updated_at FROM curated_memories WHERE agent_id = ?`
	args := []any{agentID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY category, updated_at DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "ListCuratedMemories", Cause: err}
	}
	defer rows.Close()

	var out []CuratedMemory
	for rows.Next() {
		var m CuratedMemory
		var updatedAt string
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Category, &m.Content, &updatedAt); err != nil {
			return nil, &errs.PersistenceError{Op: "ListCuratedMemories", Cause: err}
		}
		m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "ListCuratedMemories", Cause: err}
	}
	return out, nil
}

// DeleteCuratedMemory removes one fact by id, scoped to agentID.
func (db *DB) DeleteCuratedMemory(agentID, id string) error {
	return db.withWrite(func() error {
		res, err := db.conn.Exec(`DELETE FROM curated_memories WHERE id = ? AND agent_id = ?`, id, agentID)
		if err != nil {
			return &errs.PersistenceError{Op: "DeleteCuratedMemory", Cause: err}
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "delete_curated_memory", Detail: id}
		}
		return nil
	})
}

// AppendSessionLog inserts one immutable log row and returns it with its
// assigned ID and timestamp. The FTS mirror table is kept in sync by the
// session_logs_ai trigger.
func (db *DB) AppendSessionLog(l SessionLog) (SessionLog, error) {
	l.CreatedAt = time.Now().UTC()
	var metadata sql.NullString
	if len(l.Metadata) > 0 {
		b, err := json.Marshal(l.Metadata)
		if err != nil {
			return SessionLog{}, &errs.PersistenceError{Op: "AppendSessionLog", Cause: err}
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	err := db.withWrite(func() error {
		res, err := db.conn.Exec(
			`INSERT INTO session_logs (agent_id, session_id, kind, speaker_id, turn_number, content, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.AgentID, l.SessionID, string(l.Kind), l.SpeakerID, l.TurnNumber, l.Content, metadata,
			l.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = id
		return nil
	})
	if err != nil {
		return SessionLog{}, &errs.PersistenceError{Op: "AppendSessionLog", Cause: err}
	}
	return l, nil
}

// ListSessionLogs returns the log entries for one session in turn order.
func (db *DB) ListSessionLogs(agentID, sessionID string) ([]SessionLog, error) {
	rows, err := db.conn.Query(
		`SELECT id, agent_id, session_id, kind, speaker_id, turn_number, content, metadata, created_at
		 FROM session_logs WHERE agent_id = ? AND session_id = ? ORDER BY id ASC`,
		agentID, sessionID,
	)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "ListSessionLogs", Cause: err}
	}
	defer rows.Close()
	return scanSessionLogs(rows)
}

// SearchSessionLogs runs a BM25-ranked full-text query over agentID's
// session logs, matching spec.md §4.5's search_my_history contract. Results
// are ordered best-match first.
func (db *DB) SearchSessionLogs(agentID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT sl.id, sl.agent_id, sl.session_id, sl.kind, sl.speaker_id, sl.turn_number,
		        sl.content, sl.metadata, sl.created_at, bm25(session_logs_fts) AS rank
		 FROM session_logs_fts
		 JOIN session_logs sl ON sl.id = session_logs_fts.rowid
		 WHERE session_logs_fts MATCH ? AND sl.agent_id = ?
		 ORDER BY rank LIMIT ?`,
		query, agentID, limit,
	)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "SearchSessionLogs", Cause: err}
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var l SessionLog
		var speakerID, metadata sql.NullString
		var createdAt string
		var rank float64
		if err := rows.Scan(&l.ID, &l.AgentID, &l.SessionID, &l.Kind, &speakerID, &l.TurnNumber,
			&l.Content, &metadata, &createdAt, &rank); err != nil {
			return nil, &errs.PersistenceError{Op: "SearchSessionLogs", Cause: err}
		}
		l.SpeakerID = speakerID.String
		l.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &l.Metadata)
		}
		// bm25() returns lower-is-better; invert so higher Score means a
		// better match, matching SearchResult's documented convention.
		out = append(out, SearchResult{Log: l, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "SearchSessionLogs", Cause: err}
	}
	return out, nil
}

func scanSessionLogs(rows *sql.Rows) ([]SessionLog, error) {
	var out []SessionLog
	for rows.Next() {
		var l SessionLog
		var speakerID, metadata sql.NullString
		var createdAt string
		if err := rows.Scan(&l.ID, &l.AgentID, &l.SessionID, &l.Kind, &speakerID, &l.TurnNumber,
			&l.Content, &metadata, &createdAt); err != nil {
			return nil, &errs.PersistenceError{Op: "ListSessionLogs", Cause: err}
		}
		l.SpeakerID = speakerID.String
		l.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &l.Metadata)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "ListSessionLogs", Cause: err}
	}
	return out, nil
}
