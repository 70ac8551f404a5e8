package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report parameter names the way callers spell them ("low", not "Low").
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// FieldError describes the first constraint a struct failed.
type FieldError struct {
	Field  string
	Tag    string
	Param  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Struct validates v using its `validate` struct tags and returns the first
// failure as a *FieldError.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Unit validates that value lies in the closed interval [0, 1].
func Unit(field string, value float64) error {
	if err := validate.Var(value, "gte=0,lte=1"); err != nil {
		return &FieldError{Field: field, Tag: "unit", Reason: "must be between zero and one"}
	}
	return nil
}

// Finite validates that value is neither NaN nor infinite.
func Finite(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &FieldError{Field: field, Tag: "finite", Reason: "must be a finite number"}
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	fe := &FieldError{Field: e.Field(), Tag: e.Tag(), Param: e.Param()}

	switch e.Tag() {
	case "required":
		fe.Reason = "is required"
	case "gte":
		fe.Reason = fmt.Sprintf("must be at least %s", e.Param())
	case "gt":
		fe.Reason = fmt.Sprintf("must be greater than %s", e.Param())
	case "lte":
		fe.Reason = fmt.Sprintf("must not exceed %s", e.Param())
	case "gtefield":
		fe.Reason = fmt.Sprintf("must be greater than or equal to %s", paramName(e))
	case "gtfield":
		fe.Reason = fmt.Sprintf("must be greater than %s", paramName(e))
	default:
		fe.Reason = fmt.Sprintf("validation failed (%s)", e.Tag())
	}
	return fe
}

// paramName resolves a cross-field tag parameter ("Low") to its json name.
func paramName(e validator.FieldError) string {
	return strings.ToLower(e.Param())
}
