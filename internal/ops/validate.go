package ops

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
)

// Input bounds and defaults.
const (
	MinLimit          = 1
	MaxLimit          = 100
	MaxQueryLength    = 500
	MaxSpaceKeyLength = 10

	DefaultSearchLimit = 5
	DefaultListLimit   = 10
	DefaultSpace       = "ENG"
)

var (
	pageIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	spaceKeyPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)?$`)
)

// ValidateQuery returns the trimmed query.
func ValidateQuery(query string) (string, error) {
	if query == "" {
		return "", apierr.InvalidQuery(query, "Query cannot be empty")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return "", apierr.InvalidQuery(query, fmt.Sprintf("Query must be at most %d characters", MaxQueryLength))
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", apierr.InvalidQuery(query, "Query cannot be only whitespace")
	}
	return trimmed, nil
}

// ValidatePageID returns the trimmed page id.
func ValidatePageID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !pageIDPattern.MatchString(id) {
		return "", apierr.InvalidPageID(id)
	}
	return id, nil
}

// ValidateSpaceKey returns the trimmed, upper-cased space key.
func ValidateSpaceKey(space string) (string, error) {
	space = strings.ToUpper(strings.TrimSpace(space))
	if space == "" || len(space) > MaxSpaceKeyLength || !spaceKeyPattern.MatchString(space) {
		return "", apierr.InvalidSpaceKey(space)
	}
	return space, nil
}

// ValidateLimit checks limit against [MinLimit, MaxLimit].
func ValidateLimit(limit int) (int, error) {
	if limit < MinLimit || limit > MaxLimit {
		return 0, apierr.InvalidLimit(limit, MinLimit, MaxLimit)
	}
	return limit, nil
}
