package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection with the single-writer discipline spec.md §5
// requires: readers do not block each other, writes are serialized through
// writeMu.
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// Open creates (if needed) the schema at path and returns a ready DB.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(8)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// withWrite serializes a mutation under the single-writer lock.
func (db *DB) withWrite(fn func() error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return fn()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS personas (
		agent_id TEXT PRIMARY KEY REFERENCES agents(id) ON DELETE CASCADE,
		data JSON NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		agent_id TEXT PRIMARY KEY REFERENCES agents(id) ON DELETE CASCADE,
		data JSON NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS curated_memories (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_curated_agent_cat ON curated_memories(agent_id, category)`,
	`CREATE TABLE IF NOT EXISTS session_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		speaker_id TEXT,
		turn_number INTEGER,
		content TEXT NOT NULL,
		metadata JSON,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_logs_agent_session ON session_logs(agent_id, session_id)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS session_logs_fts USING fts5(
		content, agent_id UNINDEXED, session_id UNINDEXED, content='session_logs', content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS session_logs_ai AFTER INSERT ON session_logs BEGIN
		INSERT INTO session_logs_fts(rowid, content, agent_id, session_id) VALUES (new.id, new.content, new.agent_id, new.session_id);
	END`,
	`CREATE TRIGGER IF NOT EXISTS session_logs_ad AFTER DELETE ON session_logs BEGIN
		INSERT INTO session_logs_fts(session_logs_fts, rowid, content, agent_id, session_id) VALUES('delete', old.id, old.content, old.agent_id, old.session_id);
	END`,
	`CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		situation_pattern TEXT,
		guidance TEXT,
		actions JSON NOT NULL,
		source TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		effectiveness REAL,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_skills_agent_active ON skills(agent_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		mode TEXT,
		theme TEXT,
		phase TEXT,
		turn_counter INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		participants JSON,
		done_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS llm_usage_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		session_id TEXT,
		timestamp TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT,
		task_type TEXT,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		ttft_ms INTEGER NOT NULL DEFAULT 0,
		quality REAL,
		task_success INTEGER,
		evaluation TEXT,
		would_use_again INTEGER,
		suggested_alternative TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_agent_ts ON llm_usage_metrics(agent_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS model_pricing (
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		input_per_1m REAL NOT NULL,
		output_per_1m REAL NOT NULL,
		context_window INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (provider, model)
	)`,
	`CREATE TABLE IF NOT EXISTS model_experience_notes (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		situation TEXT,
		observation TEXT,
		recommendation TEXT,
		purpose TEXT,
		model TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS impressions (
		id TEXT PRIMARY KEY,
		observer_agent_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		target_agent_id TEXT NOT NULL,
		content TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS model_overrides (
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL,
		model TEXT NOT NULL,
		duration TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (agent_id, session_id, purpose)
	)`,
}

func (db *DB) migrate() error {
	return db.withWrite(func() error {
		for _, stmt := range schema {
			if _, err := db.conn.Exec(stmt); err != nil {
				return fmt.Errorf("exec %q: %w", stmt, err)
			}
		}
		return nil
	})
}

// RepairIndex rebuilds session_logs_fts from session_logs if the row counts
// diverge, satisfying spec.md §3's "repair on startup if mismatched"
// invariant on the log/index correspondence.
func (db *DB) RepairIndex() error {
	var logCount, ftsCount int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM session_logs`).Scan(&logCount); err != nil {
		return err
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM session_logs_fts`).Scan(&ftsCount); err != nil {
		return err
	}
	if logCount == ftsCount {
		return nil
	}
	return db.withWrite(func() error {
		if _, err := db.conn.Exec(`INSERT INTO session_logs_fts(session_logs_fts) VALUES('rebuild')`); err != nil {
			return err
		}
		return nil
	})
}
