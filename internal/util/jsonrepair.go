package util

import (
	"encoding/json"
	"strings"
)

// RepairArgs coerces model-emitted tool arguments into a JSON object.
//   - empty or "null" becomes {}
//   - markdown code fences are stripped
//   - text around the outermost {...} is dropped
//   - a JSON string holding an object (double encoded) is unwrapped
//
// The second result reports whether the output is a valid JSON object.
func RepairArgs(raw json.RawMessage) (json.RawMessage, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return json.RawMessage("{}"), true
	}

	var inner string
	if strings.HasPrefix(s, `"`) && json.Unmarshal([]byte(s), &inner) == nil {
		s = strings.TrimSpace(inner)
	}

	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.Trim(s, "`"))
		if strings.HasPrefix(strings.ToLower(s), "json") {
			s = strings.TrimSpace(s[4:])
		}
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return json.RawMessage(s), false
	}
	s = s[start : end+1]

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return json.RawMessage(s), false
	}
	return json.RawMessage(s), true
}
