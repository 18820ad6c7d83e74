package llmprovider

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ToolFromStruct creates a function tool whose parameters schema is reflected
// from the Go type T. Field tags follow invopop/jsonschema conventions
// (`json:"city" jsonschema:"description=City name"`).
//
//	type WeatherArgs struct {
//	    City string `json:"city" jsonschema:"description=City name"`
//	}
//	tool, err := llmprovider.ToolFromStruct[WeatherArgs]("get_weather", "Look up the weather")
func ToolFromStruct[T any](name, description string) (*Tool, error) {
	params, err := SchemaFor[T]()
	if err != nil {
		return nil, fmt.Errorf("failed to create tool %s: %w", name, err)
	}
	return NewCustomTool(name, description, params)
}

// schemaReflector inlines all definitions; vendors do not resolve $ref.
var schemaReflector = &jsonschema.Reflector{
	DoNotReference: true,
}

// SchemaFor reflects a self-contained JSON schema object for T.
func SchemaFor[T any]() (map[string]any, error) {
	var zero T
	schema := schemaReflector.Reflect(&zero)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Vendors reject the meta-schema and id keys
	delete(out, "$schema")
	delete(out, "$id")

	return out, nil
}
