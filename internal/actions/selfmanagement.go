package actions

import (
	"time"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/override"
	"github.com/sipeed/picoclaw-core/internal/providers"
	"github.com/sipeed/picoclaw-core/internal/store"
)

// registerSelfManagement adds the six telemetry/optimization actions from
// spec.md §4.3 and §4.8.
func registerSelfManagement(r *Registry) {
	r.Register(Action{
		Name:        "select_llm",
		Description: "Override the model used for a given purpose, for this turn, the rest of the session, or permanently.",
		Parameters: objectSchema(map[string]any{
			"purpose":     stringEnumProp("call purpose to override", "thinking", "conversation", "analysis", "tool_calling", "creative"),
			"model_alias": stringProp("alias to switch to; must be in the agent's selectable set"),
			"reason":      stringProp("why this switch is being made"),
			"duration":    stringEnumProp("how long the override lasts", "this_turn", "this_session", "permanent"),
		}, "purpose", "model_alias", "duration"),
		Handler: handleSelectLLM,
	})
	r.Register(Action{
		Name:        "evaluate_response",
		Description: "Attach a quality evaluation to the most recently completed LLM call.",
		Parameters: objectSchema(map[string]any{
			"quality_score":              numberProp("0..1 quality score"),
			"task_success":               boolProp("whether the call accomplished its task"),
			"evaluation":                 stringProp("free-text evaluation"),
			"would_use_again":            boolProp("whether this model should be used again for similar calls"),
			"better_model_suggestion":    stringProp("an alternative model alias, if any"),
		}, "quality_score", "task_success", "evaluation"),
		Handler: handleEvaluateResponse,
	})
	r.Register(Action{
		Name:        "analyze_llm_usage",
		Description: "Summarize this agent's recorded LLM usage over a time window.",
		Parameters: objectSchema(map[string]any{
			"period":   stringEnumProp("time window", "last_hour", "last_day", "last_week", "last_month", "all"),
			"group_by": stringEnumProp("breakdown dimension", "model", "purpose"),
			"focus":    stringProp("optional free-text focus hint, echoed back in the summary"),
		}, "period"),
		Handler: handleAnalyzeUsage,
	})
	r.Register(Action{
		Name:        "recall_model_experiences",
		Description: "Recall previously saved observations about model behavior.",
		Parameters: objectSchema(map[string]any{
			"purpose": stringProp("optional purpose filter"),
			"model":   stringProp("optional model filter"),
		}),
		Handler: handleRecallExperiences,
	})
	r.Register(Action{
		Name:        "save_model_insight",
		Description: "Save an observation about how a model behaved in some situation.",
		Parameters: objectSchema(map[string]any{
			"situation":      stringProp("what was being attempted"),
			"observation":    stringProp("what happened"),
			"recommendation": stringProp("what to do differently next time"),
			"purpose":        stringProp("optional purpose this note applies to"),
			"model":          stringProp("optional model this note applies to"),
		}, "situation", "observation", "recommendation"),
		Handler: handleSaveInsight,
	})
	r.Register(Action{
		Name:        "optimize_model_selection",
		Description: "Compute a suggested model-selection configuration without applying it.",
		Parameters: objectSchema(map[string]any{
			"goal":                  stringEnumProp("optimization goal", "minimize_cost", "maximize_quality", "balance", "minimize_latency"),
			"budget_limit_usd":      numberProp("optional total budget constraint"),
			"min_quality_threshold": numberProp("optional minimum acceptable quality"),
		}, "goal"),
		Handler: handleOptimizeSelection,
	})
}

func handleSelectLLM(rc *RunContext, args map[string]any) (Result, error) {
	alias := argString(args, "model_alias")
	if !providers.IsSelectable(alias, rc.SelectableAliases) {
		return Result{}, &errs.ActionError{
			Kind: errs.ActionErrorPermission, Action: "select_llm",
			Detail: "alias " + alias + " is not in the agent's selectable set",
		}
	}
	purpose := providers.Purpose(argString(args, "purpose"))
	duration := override.Duration(argString(args, "duration"))
	rc.Override.Set(purpose, alias, duration)

	// this_turn never outlives the current loop invocation, so only
	// this_session and permanent are written through to storage. permanent
	// is keyed agent-wide (empty session id); this_session is scoped to the
	// session that requested it.
	switch duration {
	case override.ThisSession:
		if err := rc.DB.SaveModelOverride(rc.AgentID, rc.SessionID, purpose, alias, string(duration)); err != nil {
			return Result{}, err
		}
	case override.Permanent:
		if err := rc.DB.SaveModelOverride(rc.AgentID, "", purpose, alias, string(duration)); err != nil {
			return Result{}, err
		}
	}

	return Result{Success: true, Data: map[string]any{
		"purpose": string(purpose), "model_alias": alias, "duration": string(duration),
	}}, nil
}

func handleEvaluateResponse(rc *RunContext, args map[string]any) (Result, error) {
	if rc.LastMetricsID == nil || *rc.LastMetricsID == 0 {
		return Result{}, &errs.ActionError{
			Kind: errs.ActionErrorPrecondition, Action: "evaluate_response",
			Detail: "no completed LLM call to attach this evaluation to",
		}
	}
	quality, _ := argFloat(args, "quality_score")
	success, hasSuccess := argBool(args, "task_success")
	var successPtr *bool
	if hasSuccess {
		successPtr = &success
	}
	wouldUseAgain, hasWua := argBool(args, "would_use_again")
	var wouldUseAgainPtr *bool
	if hasWua {
		wouldUseAgainPtr = &wouldUseAgain
	}

	err := rc.DB.UpdateEvaluation(*rc.LastMetricsID, &quality, successPtr,
		argString(args, "evaluation"), wouldUseAgainPtr, argString(args, "better_model_suggestion"))
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"metric_id": *rc.LastMetricsID}}, nil
}

func handleAnalyzeUsage(rc *RunContext, args map[string]any) (Result, error) {
	since := periodSince(argString(args, "period"))
	summaries, err := rc.DB.AnalyzeUsage(rc.AgentID, since)
	if err != nil {
		return Result{}, err
	}

	var totalCost, totalLatency, qualitySum float64
	var qualityCount, totalCalls, totalInput, totalOutput int
	byModel := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		totalCost += s.CostUSD
		totalLatency += s.AvgLatencyMs * float64(s.Calls)
		totalCalls += s.Calls
		totalInput += s.InputTokens
		totalOutput += s.OutputTokens
		if s.AvgQuality != nil {
			qualitySum += *s.AvgQuality * float64(s.Calls)
			qualityCount += s.Calls
		}
		byModel = append(byModel, map[string]any{
			"provider": s.Provider, "model": s.Model, "calls": s.Calls,
			"cost_usd": s.CostUSD, "avg_latency_ms": s.AvgLatencyMs, "avg_quality": s.AvgQuality,
		})
	}

	avgLatency := 0.0
	if totalCalls > 0 {
		avgLatency = totalLatency / float64(totalCalls)
	}
	avgQuality := 0.0
	haveQuality := qualityCount > 0
	if haveQuality {
		avgQuality = qualitySum / float64(qualityCount)
	}
	efficiency := 0.0
	if haveQuality && totalCost > 0 {
		efficiency = avgQuality / (totalCost / float64(totalCalls))
	}

	return Result{Success: true, Data: map[string]any{
		"period":            argString(args, "period"),
		"focus":             argString(args, "focus"),
		"total_calls":       totalCalls,
		"total_cost_usd":    totalCost,
		"total_input_tokens": totalInput,
		"total_output_tokens": totalOutput,
		"avg_latency_ms":    avgLatency,
		"avg_quality":       avgQuality,
		"cost_efficiency":   efficiency,
		"by_model":          byModel,
		"recommendations":   buildRecommendations(summaries),
	}}, nil
}

// buildRecommendations implements the simple rule from spec.md §4.8: flag a
// purpose served by an expensive model when a cheaper model actually used
// for the same purpose has comparable or better mean quality.
func buildRecommendations(summaries []store.UsageSummary) []string {
	var recs []string
	for i, expensive := range summaries {
		if expensive.AvgQuality == nil {
			continue
		}
		for j, cheaper := range summaries {
			if i == j || cheaper.AvgQuality == nil {
				continue
			}
			cheaperUnitCost := cheaper.CostUSD / float64(max(cheaper.Calls, 1))
			expensiveUnitCost := expensive.CostUSD / float64(max(expensive.Calls, 1))
			if cheaperUnitCost < expensiveUnitCost && *cheaper.AvgQuality >= *expensive.AvgQuality {
				recs = append(recs, expensive.Provider+"/"+expensive.Model+
					" costs more per call than "+cheaper.Provider+"/"+cheaper.Model+
					" with no quality gain; consider switching")
			}
		}
	}
	return recs
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func periodSince(period string) time.Time {
	now := time.Now().UTC()
	switch period {
	case "last_hour":
		return now.Add(-time.Hour)
	case "last_day":
		return now.Add(-24 * time.Hour)
	case "last_week":
		return now.Add(-7 * 24 * time.Hour)
	case "last_month":
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

func handleRecallExperiences(rc *RunContext, args map[string]any) (Result, error) {
	notes, err := rc.DB.RecallModelExperienceNotes(rc.AgentID, argString(args, "purpose"), argString(args, "model"), 20)
	if err != nil {
		return Result{}, err
	}
	items := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		items = append(items, map[string]any{
			"situation": n.Situation, "observation": n.Observation,
			"recommendation": n.Recommendation, "purpose": n.Purpose, "model": n.Model,
		})
	}
	return Result{Success: true, Data: map[string]any{"notes": items}}, nil
}

func handleSaveInsight(rc *RunContext, args map[string]any) (Result, error) {
	note, err := rc.DB.SaveModelExperienceNote(store.ModelExperienceNote{
		AgentID:        rc.AgentID,
		Situation:      argString(args, "situation"),
		Observation:    argString(args, "observation"),
		Recommendation: argString(args, "recommendation"),
		Purpose:        argString(args, "purpose"),
		Model:          argString(args, "model"),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"note_id": note.ID}}, nil
}

func handleOptimizeSelection(rc *RunContext, args map[string]any) (Result, error) {
	summaries, err := rc.DB.AnalyzeUsage(rc.AgentID, time.Time{})
	if err != nil {
		return Result{}, err
	}
	goal := argString(args, "goal")
	minQuality, hasMinQuality := argFloat(args, "min_quality_threshold")
	budget, hasBudget := argFloat(args, "budget_limit_usd")

	var best *store.UsageSummary
	for i := range summaries {
		s := &summaries[i]
		if hasMinQuality && (s.AvgQuality == nil || *s.AvgQuality < minQuality) {
			continue
		}
		unitCost := s.CostUSD / float64(max(s.Calls, 1))
		if hasBudget && unitCost > budget {
			continue
		}
		if best == nil || betterForGoal(goal, *s, *best) {
			best = s
		}
	}

	proposal := map[string]any{"goal": goal, "applied": false}
	if best != nil {
		proposal["suggested_provider"] = best.Provider
		proposal["suggested_model"] = best.Model
	} else {
		proposal["suggested_provider"] = nil
		proposal["suggested_model"] = nil
		proposal["note"] = "no recorded model meets the given constraints"
	}
	return Result{Success: true, Data: proposal}, nil
}

func betterForGoal(goal string, candidate, current store.UsageSummary) bool {
	candidateUnitCost := candidate.CostUSD / float64(max(candidate.Calls, 1))
	currentUnitCost := current.CostUSD / float64(max(current.Calls, 1))
	switch goal {
	case "minimize_cost":
		return candidateUnitCost < currentUnitCost
	case "maximize_quality":
		return qualityOf(candidate) > qualityOf(current)
	case "minimize_latency":
		return candidate.AvgLatencyMs < current.AvgLatencyMs
	default: // balance
		return qualityOf(candidate)/max1(candidateUnitCost) > qualityOf(current)/max1(currentUnitCost)
	}
}

func qualityOf(s store.UsageSummary) float64 {
	if s.AvgQuality == nil {
		return 0
	}
	return *s.AvgQuality
}

func max1(f float64) float64 {
	if f <= 0 {
		return 1e-9
	}
	return f
}
