package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/avatair-api/internal/repository"
	"github.com/noah-isme/avatair-api/pkg/avatarai"
)

// Error kinds. Concrete errors wrap exactly one of these so callers can
// classify failures with errors.Is.
var (
	ErrNotFound                 = errors.New("not found")
	ErrPolicyViolation          = errors.New("policy violation")
	ErrValidation               = errors.New("validation failed")
	ErrStorageFailure           = repository.ErrStorage
	ErrRemoteServiceUnavailable = avatarai.ErrUnavailable
)

var (
	// ErrSurveyNotFound indicates the survey does not exist or is not visible.
	ErrSurveyNotFound = fmt.Errorf("survey %w", ErrNotFound)
	// ErrResponseNotFound indicates the response session does not exist.
	ErrResponseNotFound = fmt.Errorf("response %w", ErrNotFound)
	// ErrSurveyClosed rejects participation in a survey that is not activated.
	ErrSurveyClosed = fmt.Errorf("%w: survey is not open for responses", ErrPolicyViolation)
	// ErrSurveyActivated rejects edits to an activated survey.
	ErrSurveyActivated = fmt.Errorf("%w: survey is activated and cannot be edited", ErrPolicyViolation)
	// ErrInvalidPattern rejects bulk delete matchers before they reach a store.
	ErrInvalidPattern = fmt.Errorf("%w: %w", ErrValidation, repository.ErrInvalidPattern)
	// ErrPublishingDisabled indicates no archive storage is configured.
	ErrPublishingDisabled = fmt.Errorf("%w: archive publishing is not configured", ErrPolicyViolation)
)

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// translateNotFound maps a repository miss to the given domain error and
// leaves every other error untouched.
func translateNotFound(err, domain error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain
	}
	return err
}
