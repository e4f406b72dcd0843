package core

import (
	"encoding/json"
	"testing"
)

func TestToolResultJSON(t *testing.T) {
	tests := []struct {
		name   string
		result any
		key    string
	}{
		{"string wrapped", "🌤️ sunny", "result"},
		{"map passthrough", map[string]any{"city": "Lisbon"}, "city"},
		{"list wrapped", []map[string]any{{"name": "Clinic"}}, "result"},
		{"nil wrapped", nil, "result"},
		{"unencodable", make(chan int), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ToolResult{CallID: "c1", Name: "x", Result: tt.result}.ResultJSON()
			var m map[string]any
			if err := json.Unmarshal([]byte(out), &m); err != nil {
				t.Fatalf("not JSON: %s: %v", out, err)
			}
			if _, ok := m[tt.key]; !ok {
				t.Fatalf("expected key %q in %s", tt.key, out)
			}
		})
	}
}

func TestHTTPStatusError(t *testing.T) {
	err := &HTTPStatusError{Provider: "openai", Status: 429, Body: "slow down"}
	if err.Error() != "openai http 429: slow down" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
