package registry

import "github.com/deskpilot/deskpilot/pkg/models"

// parameterSchemas returns the JSON schema for each action kind's params.
// Durations are seconds, expressed as numbers, matching the workflow file
// format.
func parameterSchemas() map[models.ActionKind]map[string]any {
	return map[models.ActionKind]map[string]any{
		models.ActionClick: {
			"type": "object",
			"properties": map[string]any{
				"coordinates": coordinatesSchema(),
				"click_type": map[string]any{
					"type": "string",
					"enum": []string{"single", "double", "right"},
				},
			},
		},
		models.ActionClickAndType: {
			"type": "object",
			"properties": map[string]any{
				"coordinates": coordinatesSchema(),
				"text": map[string]any{
					"type":        "string",
					"description": "Text to type. Supports inputs.<name> references.",
				},
			},
			"required": []string{"text"},
		},
		models.ActionDetect: {
			"type": "object",
			"properties": map[string]any{
				"template":  map[string]any{"type": "string"},
				"threshold": thresholdSchema(),
			},
			"required": []string{"template"},
		},
		models.ActionDetectLoop: {
			"type": "object",
			"properties": map[string]any{
				"template":  map[string]any{"type": "string"},
				"threshold": thresholdSchema(),
				"timeout": map[string]any{
					"type":             "number",
					"exclusiveMinimum": 0,
				},
				"poll_interval": map[string]any{
					"type":             "number",
					"exclusiveMinimum": 0,
				},
				"mode": map[string]any{
					"type": "string",
					"enum": []string{"wait_until_appears", "wait_until_disappears"},
				},
				"on_timeout": map[string]any{
					"type": "string",
					"enum": []string{"fail", "continue"},
				},
			},
			"required": []string{"template"},
		},
		models.ActionWait: {
			"type": "object",
			"properties": map[string]any{
				"duration": map[string]any{
					"type":             "number",
					"exclusiveMinimum": 0,
				},
				"description": map[string]any{"type": "string"},
			},
			"required": []string{"duration"},
		},
		models.ActionKeyPress: {
			"type": "object",
			"properties": map[string]any{
				"key":          map[string]any{"type": "string", "minLength": 1},
				"text_context": map[string]any{"type": "string"},
			},
			"required": []string{"key"},
		},
		models.ActionClipboard: {
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type": "string",
					"enum": []string{"get", "set", "copy", "paste"},
				},
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"operation"},
		},
		models.ActionScreenshot: {
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
		},
		models.ActionCloseWindow: {
			"type": "object",
			"properties": map[string]any{
				"title_pattern": map[string]any{"type": "string"},
			},
		},
		models.ActionWebhook: {
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "format": "uri"},
				"method": map[string]any{
					"type": "string",
					"enum": []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
				},
				"headers": map[string]any{"type": "object"},
				"body":    map[string]any{},
			},
			"required": []string{"url"},
		},
		models.ActionComposite: {
			"type": "object",
		},
		models.ActionCompletion: {
			"type": "object",
			"properties": map[string]any{
				"status":  map[string]any{"type": "string"},
				"message": map[string]any{"type": "string"},
			},
		},
	}
}

func coordinatesSchema() map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "number"},
		"minItems": 2,
		"maxItems": 2,
	}
}

func thresholdSchema() map[string]any {
	return map[string]any{
		"type":    "number",
		"minimum": 0,
		"maximum": 1,
	}
}
