package util

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	ExpandedStruct: true,
	DoNotReference: true,
	Anonymous:      true,
}

// GenerateJSONSchema returns a JSON schema string for the given object type.
// The object should be a pointer to a struct to capture fields and tags.
// The draft $schema marker is dropped; providers reject it in function
// parameter schemas.
func GenerateJSONSchema(obj any) string {
	schema := reflector.Reflect(obj)
	schema.Version = ""
	schema.ID = ""
	b, err := json.Marshal(schema)
	if err != nil {
		return `{"type":"object","properties":{}}`
	}
	return string(b)
}

// SchemaMap decodes a JSON schema string into a generic map.
// Invalid input yields an empty object schema.
func SchemaMap(schema string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(schema), &m); err != nil || m == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return m
}
