package providers

import "time"

// Metric is one LlmUsageMetric row (spec.md §3). Quality/Success/Evaluation/
// WouldUseAgain/SuggestedAlternative are filled later by evaluate_response
// and are zero-valued here.
type Metric struct {
	ID          int64
	AgentID     string
	SessionID   string
	Timestamp   time.Time
	Provider    string
	Model       string
	Purpose     Purpose
	TaskType    string
	InputTokens int
	OutputTokens int
	CostUSD     float64
	LatencyMs   int64
	TTFTMillis  int64

	Quality              *float64
	TaskSuccess          *bool
	Evaluation           string
	WouldUseAgain        *bool
	SuggestedAlternative string
}

// MetricsRecorder is implemented by the persistence layer. The router calls
// it after every attempt — successful or exhausted — so every LLM call
// produces exactly one row (spec.md §4.2's "always-on usage metrics").
type MetricsRecorder interface {
	RecordMetric(m Metric) (id int64, err error)
}
