package validation

import "github.com/kwkeefer/hiro/internal/domain/toolerr"

// AggregateErrors builds a single error from a set of per-field
// problems gathered while coercing and validating one tool call's
// parameters, collapsing to the one-line form when there is exactly
// one. An empty slice returns nil.
func AggregateErrors(context string, fields []toolerr.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return toolerr.NewValidationError(context, fields)
}
