package mcpserver

import (
	"fmt"

	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/domain/validation"
)

// coerceBool normalizes a loosely-typed JSON value (a literal JSON
// bool, a number, or one of the LLM caller's string spellings) into a
// bool via validation.CoerceBool, appending a FieldError to fields on
// failure rather than returning an error directly — callers collect
// every field problem for one call before aggregating.
func coerceBool(field string, v any, def bool, fields *[]toolerr.FieldError) bool {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		if t == "" {
			return def
		}
		b, err := validation.CoerceBool(t)
		if err != nil {
			*fields = append(*fields, toolerr.FieldError{Field: field, Message: "not a recognized boolean", Received: t})
			return def
		}
		return b
	default:
		*fields = append(*fields, toolerr.FieldError{Field: field, Message: "not a recognized boolean", Received: fmt.Sprintf("%v", v)})
		return def
	}
}

// validationErr aggregates field problems collected by coerceBool/
// coerceMap into the single error a handler returns.
func validationErr(toolName string, fields []toolerr.FieldError) error {
	return validation.AggregateErrors(toolName, fields)
}

// coerceMap normalizes a loosely-typed JSON value (an object, or a
// JSON-encoded object string) into a map[string]string via
// validation.CoerceJSONMap.
func coerceMap(field string, v any, fields *[]toolerr.FieldError) map[string]string {
	m, err := validation.CoerceJSONMap(v)
	if err != nil {
		*fields = append(*fields, toolerr.FieldError{Field: field, Message: err.Error(), Received: fmt.Sprintf("%v", v)})
		return map[string]string{}
	}
	return m
}
