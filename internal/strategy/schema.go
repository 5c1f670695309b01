package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ValidationError contains details about validation failures
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ErrMissingRequiredField is returned when a required field is missing
var ErrMissingRequiredField = errors.New("missing required field")

// Validate reports every problem found in the document.
// Returns nil if valid, or ValidationErrors with all issues found.
func (d *Document) Validate() error {
	var errs ValidationErrors

	if d.Metadata.Name == "" {
		errs = append(errs, ValidationError{Field: "metadata.name", Message: "is required"})
	}
	if !IsVersionSupported(d.Metadata.SchemaVersion) {
		errs = append(errs, ValidationError{
			Field:   "metadata.schema_version",
			Message: fmt.Sprintf("unsupported version %q", d.Metadata.SchemaVersion),
		})
	}
	if len(d.Parameters) == 0 {
		errs = append(errs, ValidationError{Field: "parameters", Message: "at least one parameter is required"})
	}

	seen := make(map[string]bool, len(d.Parameters))
	for i, p := range d.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)
		if p.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "is required"})
			continue
		}
		field = fmt.Sprintf("parameters.%s", p.Name)
		if seen[p.Name] {
			errs = append(errs, ValidationError{Field: field, Message: "declared more than once"})
		}
		seen[p.Name] = true

		if !finite(p.Min) || !finite(p.Max) || !finite(p.Value) {
			errs = append(errs, ValidationError{Field: field, Message: "values must be finite"})
			continue
		}
		if p.Min > p.Max {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("min %g exceeds max %g", p.Min, p.Max),
			})
			continue
		}
		if p.Value < p.Min || p.Value > p.Max {
			errs = append(errs, ValidationError{
				Field:   field + ".value",
				Message: fmt.Sprintf("%g outside [%g, %g]", p.Value, p.Min, p.Max),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
