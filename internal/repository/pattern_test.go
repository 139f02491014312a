package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMatcherRejectsUnknownField(t *testing.T) {
	_, err := NewMatcher("promptStrings", "abc", 0)
	require.ErrorIs(t, err, ErrInvalidPattern)
}

func TestNewMatcherRejectsEmptyAndLongPatterns(t *testing.T) {
	_, err := NewMatcher("responseId", "", 0)
	require.ErrorIs(t, err, ErrInvalidPattern)

	_, err = NewMatcher("responseId", strings.Repeat("a", 17), 16)
	require.ErrorIs(t, err, ErrInvalidPattern)
}

func TestNewMatcherRejectsInvalidRegex(t *testing.T) {
	_, err := NewMatcher("surveyId", "([a-z", 0)
	require.ErrorIs(t, err, ErrInvalidPattern)
}

func TestMatcherMatchString(t *testing.T) {
	matcher, err := NewMatcher(" responseId ", "^responseid0", 0)
	require.NoError(t, err)
	require.Equal(t, "response_id", matcher.Column)
	require.True(t, matcher.MatchString("responseid0abc"))
	require.False(t, matcher.MatchString("responseid1abc"))

	var zero Matcher
	require.False(t, zero.MatchString("anything"))
}

func TestNewMatcherAcceptsDocumentFields(t *testing.T) {
	columns := map[string]string{
		"_id":         "id",
		"responseId":  "response_id",
		"surveyId":    "survey_id",
		"activeField": "active_field",
	}
	for field, column := range columns {
		matcher, err := NewMatcher(field, "^x", 0)
		require.NoError(t, err, field)
		require.Equal(t, field, matcher.Field)
		require.Equal(t, column, matcher.Column)
	}
}
