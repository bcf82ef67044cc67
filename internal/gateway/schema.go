package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema describes what /documentos/procesar/ may answer with. Every key is
// optional; the singular "resultado" is the older form of "resultados".
func responseSchema() map[string]any {
	resultObject := map[string]any{"type": "object"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"resultados": map[string]any{
				"type":  []string{"array", "null"},
				"items": resultObject,
			},
			"resultado": map[string]any{
				"oneOf": []any{
					resultObject,
					map[string]any{"type": "array", "items": resultObject},
					map[string]any{"type": "null"},
				},
			},
			"error": map[string]any{"type": []string{"string", "null"}},
		},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("procesar_response.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("procesar_response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
