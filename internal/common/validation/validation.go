// Package validation provides input validation utilities for settings and API input
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (value: %s)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []*ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors", len(e.Errors))
}

// Add records err when it is a *ValidationError; nil is ignored
func (e *ValidationErrors) Add(err error) {
	if err == nil {
		return
	}
	if verr, ok := err.(*ValidationError); ok {
		e.Errors = append(e.Errors, verr)
		return
	}
	e.Errors = append(e.Errors, &ValidationError{Message: err.Error()})
}

// HasErrors returns true if there are validation errors
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields returns the names of the fields that failed, in order
func (e *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for _, verr := range e.Errors {
		fields = append(fields, verr.Field)
	}
	return fields
}

// ValidateRequired checks if a string is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateURL checks that value is an absolute http(s) URL
func ValidateURL(field, value string) error {
	if value == "" {
		return nil // Use ValidateRequired for required check
	}

	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid URL",
			Value:   value,
		}
	}
	return nil
}

// ValidateRange checks if a number is within the specified range
func ValidateRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d", min, max),
			Value:   fmt.Sprintf("%d", value),
		}
	}
	return nil
}
