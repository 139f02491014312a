package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxPatternLength bounds caller-supplied bulk delete patterns.
const DefaultMaxPatternLength = 256

// ErrInvalidPattern indicates a bulk delete matcher was rejected.
var ErrInvalidPattern = errors.New("invalid match pattern")

// matchableFields maps the accepted bulk delete keys to their column names.
var matchableFields = map[string]string{
	"responseId":  "response_id",
	"surveyId":    "survey_id",
	"activeField": "active_field",
	"_id":         "id",
}

// Matcher is a validated field/pattern pair safe to apply inside a store.
// Go's regexp package is RE2 based, so matching is linear in input size.
type Matcher struct {
	Field   string
	Column  string
	Pattern string
	re      *regexp.Regexp
}

// NewMatcher validates the field against the accepted keys and compiles the
// pattern. An empty pattern is rejected since it would match every record.
func NewMatcher(field, pattern string, maxLength int) (Matcher, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxPatternLength
	}

	field = strings.TrimSpace(field)
	column, ok := matchableFields[field]
	if !ok {
		return Matcher{}, fmt.Errorf("%w: field %q cannot be matched", ErrInvalidPattern, field)
	}
	if pattern == "" {
		return Matcher{}, fmt.Errorf("%w: pattern must not be empty", ErrInvalidPattern)
	}
	if len(pattern) > maxLength {
		return Matcher{}, fmt.Errorf("%w: pattern exceeds %d characters", ErrInvalidPattern, maxLength)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	return Matcher{Field: field, Column: column, Pattern: pattern, re: re}, nil
}

// MatchString reports whether value matches the compiled pattern.
func (m Matcher) MatchString(value string) bool {
	if m.re == nil {
		return false
	}
	return m.re.MatchString(value)
}
