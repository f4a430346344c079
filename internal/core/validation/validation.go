// Package validation checks inbound invoice and payment fields before any
// state is touched. Every failure is reported as a VALIDATION_ERROR carrying
// per-field violations.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"invoice-payment-service/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var safeIDRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("safe_id", validateSafeID)
	_ = v.RegisterValidation("iso8601", validateISO8601)
	return v
}

// Engine exposes the shared validator so transport layers can reuse the
// custom tags.
func Engine() *validator.Validate {
	return validate
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeIDRe.MatchString(fl.Field().String())
}

func validateISO8601(fl validator.FieldLevel) bool {
	_, err := ParseTimestamp(fl.Field().String())
	return err == nil
}

// Accepted due date layouts. Values without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseTimestamp parses an ISO-8601 date or date-time, with or without
// fractional seconds and offset.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: not an ISO-8601 date or date-time", raw)
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return FormatErrors(err)
	}
	return nil
}

// FormatErrors converts validator output into a VALIDATION_ERROR.
func FormatErrors(err error) *apperror.AppError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperror.Validation("Request validation failed", apperror.FieldViolation{Field: "body", Reason: err.Error()})
	}

	details := make([]apperror.FieldViolation, 0, len(errs))
	for _, fe := range errs {
		details = append(details, apperror.FieldViolation{
			Field:  fe.Field(),
			Reason: message(fe),
		})
	}
	return apperror.Validation(summary(details), details...)
}

func summary(details []apperror.FieldViolation) string {
	if len(details) == 1 {
		return fmt.Sprintf("%s %s", details[0].Field, details[0].Reason)
	}
	return "Request validation failed"
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "iso4217":
		return "must be an ISO-4217 currency code"
	case "iso8601":
		return "must be an ISO-8601 timestamp"
	case "safe_id":
		return "may only contain letters, digits, '_', '-' and '.'"
	case "eq":
		return fmt.Sprintf("must be %q", fe.Param())
	}
	return "is invalid"
}
