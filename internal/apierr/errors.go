package apierr

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input. It is raised before any remote
// call and is never retried.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// maxValueLen truncates echoed values so huge inputs don't flood logs.
const maxValueLen = 100

func newValidation(field, value, message string) *ValidationError {
	if len(value) > maxValueLen {
		value = value[:maxValueLen]
	}
	return &ValidationError{Field: field, Value: value, Message: message}
}

// InvalidQuery reports a bad search query.
func InvalidQuery(query, reason string) *ValidationError {
	msg := "Invalid search query: " + query
	if reason != "" {
		msg += " - " + reason
	}
	return newValidation("query", query, msg)
}

// InvalidPageID reports a malformed page identifier.
func InvalidPageID(id string) *ValidationError {
	return newValidation("page_id", id, "Invalid page ID: "+id)
}

// InvalidSpaceKey reports a malformed space key.
func InvalidSpaceKey(space string) *ValidationError {
	return newValidation("space", space, "Invalid space key: "+space)
}

// InvalidLimit reports an out-of-range result limit.
func InvalidLimit(limit, minVal, maxVal int) *ValidationError {
	return newValidation("limit", fmt.Sprint(limit),
		fmt.Sprintf("Invalid limit: %d. Must be between %d and %d", limit, minVal, maxVal))
}

// MaxRetriesExceededError is the terminal error of the retry engine. It is
// the only error that crosses the retry boundary after exhaustion.
type MaxRetriesExceededError struct {
	Operation string
	// Retries is the number of retries performed after the first attempt.
	Retries int
	Last    error
}

func (e *MaxRetriesExceededError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "max retries (%d) exceeded", e.Retries)
	if e.Operation != "" {
		fmt.Fprintf(&b, " for %s", e.Operation)
	}
	if e.Last != nil {
		fmt.Fprintf(&b, ": %v", e.Last)
	}
	return b.String()
}

func (e *MaxRetriesExceededError) Unwrap() error { return e.Last }
