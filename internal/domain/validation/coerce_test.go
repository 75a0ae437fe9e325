package validation

import (
	"testing"

	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

func TestCoerceJSONMap_FromMapAny(t *testing.T) {
	got, err := CoerceJSONMap(map[string]any{"a": "b", "n": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != "b" || got["n"] != "3" {
		t.Fatalf("unexpected result: %#v", got)
	}
}

func TestCoerceJSONMap_FromJSONString(t *testing.T) {
	got, err := CoerceJSONMap(`{"session":"abc123","retries":2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["session"] != "abc123" || got["retries"] != "2" {
		t.Fatalf("unexpected result: %#v", got)
	}
}

func TestCoerceJSONMap_EmptyString(t *testing.T) {
	got, err := CoerceJSONMap("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}

func TestCoerceJSONMap_RejectsNonObjectJSON(t *testing.T) {
	if _, err := CoerceJSONMap(`["a","b"]`); err == nil {
		t.Fatal("expected an error for a JSON array")
	}
	if _, err := CoerceJSONMap(`not json at all`); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestCoerceJSONMap_RejectsOtherTypes(t *testing.T) {
	if _, err := CoerceJSONMap(42); err == nil {
		t.Fatal("expected an error for a non-map, non-string value")
	}
}

func TestCoerceBool_Truthy(t *testing.T) {
	for _, s := range []string{"true", "True", "TRUE", "1", "yes", "on"} {
		got, err := CoerceBool(s)
		if err != nil || !got {
			t.Errorf("CoerceBool(%q) = %v, %v; want true, nil", s, got, err)
		}
	}
}

func TestCoerceBool_Falsy(t *testing.T) {
	for _, s := range []string{"false", "False", "FALSE", "0", "no", "off", ""} {
		got, err := CoerceBool(s)
		if err != nil || got {
			t.Errorf("CoerceBool(%q) = %v, %v; want false, nil", s, got, err)
		}
	}
}

func TestCoerceBool_RejectsUnknown(t *testing.T) {
	if _, err := CoerceBool("maybe"); err == nil {
		t.Fatal("expected an error for an unrecognized boolean string")
	}
}

func TestAggregateErrors_Empty(t *testing.T) {
	if err := AggregateErrors("http_request", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAggregateErrors_Single(t *testing.T) {
	err := AggregateErrors("http_request", []toolerr.FieldError{
		{Field: "method", Message: "must be one of GET,POST,PUT,DELETE,PATCH,HEAD,OPTIONS", Received: "FETCH"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	want := "Invalid http_request - method: must be one of GET,POST,PUT,DELETE,PATCH,HEAD,OPTIONS (received FETCH)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAggregateErrors_Multiple(t *testing.T) {
	err := AggregateErrors("create_target", []toolerr.FieldError{
		{Field: "host", Message: "required"},
		{Field: "port", Message: "must be between 1 and 65535", Received: "-1"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	var ve *toolerr.ValidationError
	if !asValidationError(err, &ve) {
		t.Fatalf("expected *toolerr.ValidationError, got %T", err)
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(ve.Fields))
	}
}

func asValidationError(err error, target **toolerr.ValidationError) bool {
	ve, ok := err.(*toolerr.ValidationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
