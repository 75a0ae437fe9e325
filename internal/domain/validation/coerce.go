// Package validation provides a coercion layer ahead of struct-tag
// validation: MCP tool callers are LLMs, which frequently send the
// right value in the wrong JSON shape (a bool as "yes", a map as a
// JSON string). Coerce* helpers normalize these before validator/v10
// ever sees the struct, and AggregateErrors turns the resulting
// per-field problems into one message.
package validation

import (
	"encoding/json"
	"fmt"
)

// CoerceJSONMap accepts either a map[string]any or a JSON-encoded
// object string and normalizes every key and value to string. Any
// other shape, including valid JSON that isn't an object, is an error.
func CoerceJSONMap(v any) (map[string]string, error) {
	switch val := v.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return val, nil
	case map[string]any:
		return stringifyMap(val), nil
	case string:
		if val == "" {
			return map[string]string{}, nil
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(val), &raw); err != nil {
			return nil, fmt.Errorf("not a JSON object: %w", err)
		}
		if raw == nil {
			return nil, fmt.Errorf("not a JSON object: %s", val)
		}
		return stringifyMap(raw), nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
}

func stringifyMap(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

var (
	truthyStrings = map[string]bool{
		"true": true, "True": true, "TRUE": true,
		"1": true, "yes": true, "on": true,
	}
	falsyStrings = map[string]bool{
		"false": true, "False": true, "FALSE": true,
		"0": true, "no": true, "off": true, "": true,
	}
)

// CoerceBool coerces the loose boolean vocabulary LLM callers send —
// {"true","True","TRUE","1","yes","on"} to true and
// {"false","False","FALSE","0","no","off",""} to false — leaving any
// other string as a type error for the caller to report.
func CoerceBool(s string) (bool, error) {
	if truthyStrings[s] {
		return true, nil
	}
	if falsyStrings[s] {
		return false, nil
	}
	return false, fmt.Errorf("not a recognized boolean: %q", s)
}
