// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure with structured
// information about what was rejected.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the struct field path that failed validation.
func (e *FieldError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string {
	return e.tag
}

// Param returns the tag parameter (e.g. "23" for "max=23").
func (e *FieldError) Param() string {
	return e.param
}

// Error returns a human-readable message.
func (e *FieldError) Error() string {
	return e.message
}

// StructError collects every field failure from one ValidateStruct call.
type StructError struct {
	errors []FieldError
}

// Errors returns the individual field failures.
func (se *StructError) Errors() []FieldError {
	return se.errors
}

// Error implements the error interface with a combined message.
func (se *StructError) Error() string {
	if len(se.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(se.errors))
	for _, e := range se.errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// getValidator returns the singleton validator, creating it on first
// use. The instance caches struct metadata and is safe for concurrent
// use.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		registerCustomValidators(validate)
	})
	return validate
}

// registerCustomValidators installs application-specific rules.
func registerCustomValidators(v *validator.Validate) {
	// targetname: a bare name usable in file names, no path separators
	// and no relative-path tokens.
	//nolint:errcheck // Registration only fails for an empty tag
	v.RegisterValidation("targetname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" || name == "." || name == ".." {
			return false
		}
		if name != filepath.Base(name) {
			return false
		}
		return !strings.ContainsAny(name, "/\\\x00")
	})
}

// ValidateStruct validates s against its `validate` tags. It returns a
// *StructError describing every failing field, or nil when s is valid.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validation internal error: %w", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	se := &StructError{errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		se.errors = append(se.errors, FieldError{
			field:   fe.Namespace(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: messageFor(fe),
		})
	}
	return se
}

// messageFor renders a friendly message for one field error.
func messageFor(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "targetname":
		return fmt.Sprintf("%s must be a bare name without path separators", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
