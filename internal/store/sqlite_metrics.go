package store

import (
	"database/sql"
	"time"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/providers"
)

// RecordMetric implements providers.MetricsRecorder, persisting one call's
// usage/cost/latency row. Optional evaluation fields are left null and
// filled in later by evaluate_response via UpdateEvaluation.
func (db *DB) RecordMetric(m providers.Metric) (int64, error) {
	var id int64
	err := db.withWrite(func() error {
		res, err := db.conn.Exec(
			`INSERT INTO llm_usage_metrics
			   (agent_id, session_id, timestamp, provider, model, purpose, task_type,
			    input_tokens, output_tokens, cost_usd, latency_ms, ttft_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.AgentID, m.SessionID, m.Timestamp.Format(time.RFC3339Nano), m.Provider, m.Model,
			string(m.Purpose), m.TaskType, m.InputTokens, m.OutputTokens, m.CostUSD, m.LatencyMs, m.TTFTMillis,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, &errs.PersistenceError{Op: "RecordMetric", Cause: err}
	}
	return id, nil
}

// UpdateEvaluation attaches post-hoc quality judgments to a previously
// recorded metric row, matching spec.md §4.6's evaluate_response action.
func (db *DB) UpdateEvaluation(metricID int64, quality *float64, taskSuccess *bool, evaluation string, wouldUseAgain *bool, suggestedAlternative string) error {
	return db.withWrite(func() error {
		res, err := db.conn.Exec(
			`UPDATE llm_usage_metrics SET quality = ?, task_success = ?, evaluation = ?, would_use_again = ?, suggested_alternative = ?
			 WHERE id = ?`,
			quality, nullableBool(taskSuccess), evaluation, nullableBool(wouldUseAgain), suggestedAlternative, metricID,
		)
		if err != nil {
			return &errs.PersistenceError{Op: "UpdateEvaluation", Cause: err}
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "evaluate_response", Detail: "metric not found"}
		}
		return nil
	})
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

// AnalyzeUsage aggregates recorded metrics for one agent, grouped by
// provider/model, for analyze_llm_usage.
type UsageSummary struct {
	Provider     string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	AvgLatencyMs float64
	AvgQuality   *float64
}

// AnalyzeUsage returns per-(provider, model) aggregates over the last
// `since` window (zero means all history).
func (db *DB) AnalyzeUsage(agentID string, since time.Time) ([]UsageSummary, error) {
	query := `SELECT provider, model, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost_usd),
	                 AVG(latency_ms), AVG(quality)
	          FROM llm_usage_metrics WHERE agent_id = ?`
	args := []any{agentID}
	if !since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, since.Format(time.RFC3339Nano))
	}
	query += ` GROUP BY provider, model ORDER BY SUM(cost_usd) DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "AnalyzeUsage", Cause: err}
	}
	defer rows.Close()

	var out []UsageSummary
	for rows.Next() {
		var s UsageSummary
		var avgQuality sql.NullFloat64
		if err := rows.Scan(&s.Provider, &s.Model, &s.Calls, &s.InputTokens, &s.OutputTokens,
			&s.CostUSD, &s.AvgLatencyMs, &avgQuality); err != nil {
			return nil, &errs.PersistenceError{Op: "AnalyzeUsage", Cause: err}
		}
		if avgQuality.Valid {
			v := avgQuality.Float64
			s.AvgQuality = &v
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "AnalyzeUsage", Cause: err}
	}
	return out, nil
}

// SavePricing upserts one (provider, model) price row, seeding
// providers.PricingTable at startup or after an operator update.
func (db *DB) SavePricing(row ModelPricingRow) error {
	return db.withWrite(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO model_pricing (provider, model, input_per_1m, output_per_1m, context_window)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(provider, model) DO UPDATE SET
			   input_per_1m = excluded.input_per_1m, output_per_1m = excluded.output_per_1m,
			   context_window = excluded.context_window`,
			row.Provider, row.Model, row.InputPer1M, row.OutputPer1M, row.ContextWindow,
		)
		if err != nil {
			return &errs.PersistenceError{Op: "SavePricing", Cause: err}
		}
		return nil
	})
}

// LoadPricingTable reads every persisted price row into a fresh
// providers.PricingTable.
func (db *DB) LoadPricingTable() (*providers.PricingTable, error) {
	rows, err := db.conn.Query(`SELECT provider, model, input_per_1m, output_per_1m, context_window FROM model_pricing`)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "LoadPricingTable", Cause: err}
	}
	defer rows.Close()

	entries := map[string]providers.Price{}
	for rows.Next() {
		var provider, model string
		var price providers.Price
		if err := rows.Scan(&provider, &model, &price.InputPer1M, &price.OutputPer1M, &price.ContextSize); err != nil {
			return nil, &errs.PersistenceError{Op: "LoadPricingTable", Cause: err}
		}
		entries[provider+"/"+model] = price
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "LoadPricingTable", Cause: err}
	}
	return providers.NewPricingTable(entries), nil
}
