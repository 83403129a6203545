// Package validator provides struct validation utilities with custom
// validators.
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cloudassure/engine/pkg/ccl"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// "ccl" checks that a string field compiles as a condition line.
	_ = v.RegisterValidation("ccl", validateCondition)

	return &Validator{validate: v}
}

// Struct validates a struct and returns field-level errors.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return out
}

func validateCondition(fl validator.FieldLevel) bool {
	_, err := ccl.Parse(fl.Field().String())
	return err == nil
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ccl":
		return "is not a valid condition"
	case "min":
		return fmt.Sprintf("must have at least %s items", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
