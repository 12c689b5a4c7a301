// Package memory implements the curated-fact and session-log memory
// service described in spec.md §4.5, wrapping internal/store's sqlite
// tables behind the operations the reasoning loop and its actions call.
package memory

import (
	"fmt"
	"strings"

	"github.com/sipeed/picoclaw-core/internal/store"
)

// CoreCategory is the curated-memory category folded into every context
// block by BuildContext.
const CoreCategory = "core"

// Service is the memory subsystem for one persistence handle. It is safe
// for concurrent use by loops belonging to different agents.
type Service struct {
	db *store.DB
}

// New wraps a persistence handle in a memory Service.
func New(db *store.DB) *Service {
	return &Service{db: db}
}

// UpsertCurated writes or replaces the fact stored under (agentID, category).
func (s *Service) UpsertCurated(agentID, category, content string) (store.CuratedMemory, error) {
	return s.db.UpsertCuratedMemory(store.CuratedMemory{AgentID: agentID, Category: category, Content: content})
}

// ListCurated returns curated facts for agentID, optionally filtered to one
// category.
func (s *Service) ListCurated(agentID, category string) ([]store.CuratedMemory, error) {
	return s.db.ListCuratedMemories(agentID, category)
}

// DeleteCurated removes one curated fact by id.
func (s *Service) DeleteCurated(agentID, id string) error {
	return s.db.DeleteCuratedMemory(agentID, id)
}

// AppendLog inserts one immutable session-log entry.
func (s *Service) AppendLog(l store.SessionLog) (store.SessionLog, error) {
	return s.db.AppendSessionLog(l)
}

// ListLog returns one session's entries in turn order.
func (s *Service) ListLog(agentID, sessionID string) ([]store.SessionLog, error) {
	return s.db.ListSessionLogs(agentID, sessionID)
}

// Search runs a BM25-ranked full-text search over agentID's session logs.
// Per spec.md §4.5, the query tokenizer splits on whitespace and treats
// each token as an AND-joined exact term, so we double-quote every token
// before handing it to FTS5's MATCH syntax.
func (s *Service) Search(agentID, query string, limit int) ([]store.SearchResult, error) {
	return s.db.SearchSessionLogs(agentID, ftsQuery(query), limit)
}

func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	return strings.Join(quoted, " AND ")
}

// BuildContext returns the compact text block of `core`-category curated
// entries used by the context builder (spec.md §4.5, §4.7).
func (s *Service) BuildContext(agentID string) (string, error) {
	entries, err := s.ListCurated(agentID, CoreCategory)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
