package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildFieldsSchema compiles a JSON schema for a model response extracting
// the given fields: every requested key must be present, each either a
// string or null, plus an optional top-level confidence number.
func BuildFieldsSchema(fields []FieldSpec) (*jsonschema.Schema, error) {
	props := map[string]any{
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
	}
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Key] = map[string]any{"type": []string{"string", "null"}}
		required = append(required, f.Key)
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("fields.schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("fields.schema.json")
}

// ValidateAgainstSchema checks raw JSON against the compiled schema.
func ValidateAgainstSchema(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode response json: %w", err)
	}
	return schema.Validate(v)
}
