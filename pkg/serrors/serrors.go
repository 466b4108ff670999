// Package serrors defines structured, machine-readable errors shared by
// services and the HTTP layer.
package serrors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// BaseError carries a stable code alongside a human-readable message. The
// locale key is kept for consumers that run the message through an i18n
// bundle; the engine itself never localizes.
type BaseError struct {
	Code      string
	Message   string
	LocaleKey string
}

func (e *BaseError) Error() string {
	return e.Message
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

// ValidationErrors maps struct field names to their validation error.
type ValidationErrors map[string]*BaseError

// NewFieldRequiredError reports a missing required field.
func NewFieldRequiredError(field, localeKey string) *BaseError {
	return &BaseError{
		Code:      "FIELD_REQUIRED",
		Message:   fmt.Sprintf("%s is required", field),
		LocaleKey: localeKey,
	}
}

// NewInvalidFieldError reports a field that failed a validation rule.
func NewInvalidFieldError(field, rule, localeKey string) *BaseError {
	return &BaseError{
		Code:      "FIELD_INVALID",
		Message:   fmt.Sprintf("%s failed validation rule %q", field, rule),
		LocaleKey: localeKey,
	}
}

// ProcessValidatorErrors converts go-playground validator errors into
// ValidationErrors. getFieldLocaleKey may return "" when a field has no
// locale mapping.
func ProcessValidatorErrors(
	errs validator.ValidationErrors,
	getFieldLocaleKey func(field string) string,
) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, err := range errs {
		field := err.Field()
		localeKey := getFieldLocaleKey(field)
		if err.Tag() == "required" {
			out[field] = NewFieldRequiredError(field, localeKey)
			continue
		}
		out[field] = NewInvalidFieldError(field, err.Tag(), localeKey)
	}
	return out
}

// Messages flattens ValidationErrors into a field → message map for
// API responses.
func (v ValidationErrors) Messages() map[string]string {
	out := make(map[string]string, len(v))
	for field, err := range v {
		out[field] = err.Message
	}
	return out
}
