package actions

// registerSearch adds search_my_history and summarize_and_save (spec.md
// §4.3, §4.5).
func registerSearch(r *Registry) {
	r.Register(Action{
		Name:        "search_my_history",
		Description: "Search this agent's session logs with BM25-ranked full-text search.",
		Parameters: objectSchema(map[string]any{
			"query":      stringProp("search text; each whitespace-separated token is required"),
			"limit":      intProp("maximum results, default 20"),
			"session_id": stringProp("optional session to restrict the search to"),
		}, "query"),
		Handler: handleSearchHistory,
	})
	r.Register(Action{
		Name:        "summarize_and_save",
		Description: "Write a curated memory entry summarizing content under a category.",
		Parameters: objectSchema(map[string]any{
			"content":  stringProp("the summary text"),
			"category": stringProp("curated-memory category"),
		}, "content", "category"),
		Handler: handleSummarizeAndSave,
	})
}

func handleSearchHistory(rc *RunContext, args map[string]any) (Result, error) {
	limit := argInt(args, "limit", 20)
	results, err := rc.Memory.Search(rc.AgentID, argString(args, "query"), limit)
	if err != nil {
		return Result{}, err
	}

	sessionFilter := argString(args, "session_id")
	items := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if sessionFilter != "" && r.Log.SessionID != sessionFilter {
			continue
		}
		items = append(items, map[string]any{
			"session_id": r.Log.SessionID,
			"kind":       string(r.Log.Kind),
			"content":    r.Log.Content,
			"score":      r.Score,
		})
	}
	return Result{Success: true, Data: map[string]any{"results": items}}, nil
}

func handleSummarizeAndSave(rc *RunContext, args map[string]any) (Result, error) {
	m, err := rc.Memory.UpsertCurated(rc.AgentID, argString(args, "category"), argString(args, "content"))
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"memory_id": m.ID}}, nil
}
