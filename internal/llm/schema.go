package llm

// BuildProcedureJSONSchema returns the JSON Schema every model answer must
// satisfy. It is embedded in the prompt and used for local validation.
func BuildProcedureJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"value":       map[string]any{"type": []any{"number", "null"}},
		},
		"required":             []any{"code", "description", "value"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"procedures": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
		"required":             []any{"procedures"},
		"additionalProperties": false,
	}
}
