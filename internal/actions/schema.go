package actions

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }

func stringEnumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func intProp(desc string) map[string]any { return map[string]any{"type": "integer", "description": desc} }

func numberProp(desc string) map[string]any { return map[string]any{"type": "number", "description": desc} }

func boolProp(desc string) map[string]any { return map[string]any{"type": "boolean", "description": desc} }

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func argFloat(args map[string]any, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}

func argBool(args map[string]any, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// missingRequiredArgs reports which of params's declared "required" fields
// are absent (or explicitly null) in args, so Dispatch can reject a call
// before it ever reaches a handler, matching the original Rust source's
// per-field "X is required" checks (e.g. SendSpeechAction::execute).
func missingRequiredArgs(params map[string]any, args map[string]any) []string {
	required, _ := params["required"].([]string)
	var missing []string
	for _, key := range required {
		if v, ok := args[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	return missing
}
