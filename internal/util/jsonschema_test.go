package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Latitude  string `json:"latitude" jsonschema:"description=Latitude in decimal degrees"`
	Longitude string `json:"longitude"`
	Radius    int    `json:"radius,omitempty"`
}

func TestGenerateJSONSchema(t *testing.T) {
	m := SchemaMap(GenerateJSONSchema(&sample{}))

	assert.Equal(t, "object", m["type"])
	assert.NotContains(t, m, "$schema")
	assert.NotContains(t, m, "$ref")

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok, "properties missing: %v", m)
	assert.Contains(t, props, "latitude")
	assert.Contains(t, props, "longitude")
	assert.Contains(t, props, "radius")

	lat := props["latitude"].(map[string]any)
	assert.Equal(t, "Latitude in decimal degrees", lat["description"])

	required, _ := m["required"].([]any)
	assert.ElementsMatch(t, []any{"latitude", "longitude"}, required)
}

func TestSchemaMapInvalid(t *testing.T) {
	m := SchemaMap("not json")
	assert.Equal(t, "object", m["type"])
}
