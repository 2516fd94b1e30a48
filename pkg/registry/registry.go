// Package registry holds the closed set of step action kinds and their
// parameter schemas. The engine's dispatch table and this registry cover the
// same kinds; adding an action is a compile-time-checked change in both
// places.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger  *slog.Logger
	schemas map[models.ActionKind]*gojsonschema.Schema
}

func NewRegistry(logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		logger:  logger.With("module", "registry"),
		schemas: make(map[models.ActionKind]*gojsonschema.Schema),
	}

	for kind, raw := range parameterSchemas() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", kind, err)
		}

		r.schemas[kind] = schema
	}

	return r, nil
}

// Known reports whether the kind is part of the closed action set.
func (r *Registry) Known(kind models.ActionKind) bool {
	_, ok := r.schemas[kind]

	return ok
}

// Validate checks step parameters against the kind's schema. Unknown kinds
// and schema violations are reported as errors, never panics.
func (r *Registry) Validate(kind models.ActionKind, params map[string]any) error {
	schema, ok := r.schemas[kind]
	if !ok {
		return fmt.Errorf("action kind %q not registered", kind)
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("validate %s params: %w", kind, err)
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return fmt.Errorf("invalid %s params: %s", kind, first.String())
	}

	return nil
}
