// Package store implements the persistence layer: sqlite-backed tables for
// agents, persona, identity, curated memory, session logs (with a mirrored
// full-text index), skills, impressions, sessions, metrics, pricing, and
// model-experience notes (spec.md §3, §6). Grounded on the teacher's
// modernc.org/sqlite usage (pkg/swarm/memory/sqlite_store.go).
package store

import "time"

// CuratedMemory is one (category, content) fact the agent keeps.
type CuratedMemory struct {
	ID        string
	AgentID   string
	Category  string
	Content   string
	UpdatedAt time.Time
}

// LogKind classifies a session-log row.
type LogKind string

const (
	LogUtterance  LogKind = "utterance"
	LogInnerVoice LogKind = "inner_voice"
	LogAction     LogKind = "action"
	LogSystem     LogKind = "system"
)

// SessionLog is one immutable session-log entry.
type SessionLog struct {
	ID         int64
	AgentID    string
	SessionID  string
	Kind       LogKind
	SpeakerID  string
	TurnNumber int
	Content    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// SearchResult is one BM25-ranked full-text search hit. Scores are
// non-negative, with a higher score meaning a better match.
type SearchResult struct {
	Log   SessionLog
	Score float64
}

// SkillSource classifies where a skill originated (spec.md §3).
type SkillSource string

const (
	SkillBundled                 SkillSource = "bundled"
	SkillAcquiredViaExperience   SkillSource = "acquired_via_experience"
	SkillAcquiredViaPeer         SkillSource = "acquired_via_peer"
	SkillAcquiredViaReflection   SkillSource = "acquired_via_reflection"
	SkillAcquiredViaCreation     SkillSource = "acquired_via_creation"
)

// Skill is one named bundle of guidance plus permitted action names.
type Skill struct {
	ID               string
	AgentID          string
	Name             string
	Description      string
	SituationPattern string
	Guidance         string
	Actions          []string
	Source           SkillSource
	UsageCount       int
	Effectiveness    *float64
	Active           bool
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// Session groups the log entries of one conversation.
type Session struct {
	ID           string
	Mode         string
	Theme        string
	Phase        string
	TurnCounter  int
	Status       SessionStatus
	Participants []string
	DoneCount    int
}

// ModelPricingRow mirrors providers.Price for persistence.
type ModelPricingRow struct {
	Provider     string
	Model        string
	InputPer1M   float64
	OutputPer1M  float64
	ContextWindow int
}

// ModelExperienceNote is an agent-authored observation about a model's
// behavior in some situation, written by save_model_insight.
type ModelExperienceNote struct {
	ID             string
	AgentID        string
	Situation      string
	Observation    string
	Recommendation string
	Purpose        string
	Model          string
	CreatedAt      time.Time
}

// Impression is what one agent thinks of another after a session.
type Impression struct {
	ID             string
	ObserverAgentID string
	SessionID      string
	TargetAgentID  string
	Content        string
	UpdatedAt      time.Time
}
