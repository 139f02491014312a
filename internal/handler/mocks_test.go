package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/pkg/avatarai"
)

type mockResponseService struct {
	lastSurveyID string
	lastSeed     models.Response
	lastActor    service.Actor
	lastInput    service.GenerateInput
	lastRatings  json.RawMessage
	lastImage    []byte
	lastField    string
	lastPattern  string

	view     service.ResponseView
	artifact avatarai.Artifact
	stream   string
	deleted  int64
	err      error
}

func (m *mockResponseService) Create(_ context.Context, surveyID string, seed models.Response, actor service.Actor) (string, error) {
	m.lastSurveyID, m.lastSeed, m.lastActor = surveyID, seed, actor
	if m.err != nil {
		return "", m.err
	}
	return "responseid0123", nil
}

func (m *mockResponseService) Get(_ context.Context, responseID string) (service.ResponseView, error) {
	if m.err != nil {
		return service.ResponseView{}, m.err
	}
	return m.view, nil
}

func (m *mockResponseService) Generate(_ context.Context, input service.GenerateInput) (avatarai.Artifact, error) {
	m.lastInput = input
	if m.err != nil {
		return avatarai.Artifact{}, m.err
	}
	return m.artifact, nil
}

func (m *mockResponseService) RecordRating(_ context.Context, responseID string, ratings json.RawMessage) error {
	m.lastRatings = ratings
	return m.err
}

func (m *mockResponseService) Optimize(_ context.Context, responseID string, ratings json.RawMessage, actor service.Actor) (avatarai.Stream, error) {
	m.lastRatings, m.lastActor = ratings, actor
	if m.err != nil {
		return avatarai.Stream{}, m.err
	}
	return avatarai.Stream{ContentType: "application/json", Body: io.NopCloser(strings.NewReader(m.stream))}, nil
}

func (m *mockResponseService) InitializeFinal(_ context.Context, responseID, prompt string, actor service.Actor) (avatarai.Stream, error) {
	m.lastActor = actor
	if m.err != nil {
		return avatarai.Stream{}, m.err
	}
	return avatarai.Stream{ContentType: "application/json", Body: io.NopCloser(strings.NewReader(m.stream))}, nil
}

func (m *mockResponseService) FinalizeResult(_ context.Context, responseID string, actor service.Actor) (avatarai.Artifact, error) {
	m.lastActor = actor
	if m.err != nil {
		return avatarai.Artifact{}, m.err
	}
	return m.artifact, nil
}

func (m *mockResponseService) LogPrompt(_ context.Context, responseID, prompt string) error {
	return m.err
}

func (m *mockResponseService) LogImage(_ context.Context, responseID string, image []byte) error {
	m.lastImage = image
	return m.err
}

func (m *mockResponseService) Delete(_ context.Context, responseID string) error {
	return m.err
}

func (m *mockResponseService) DeleteBulk(_ context.Context, field, pattern string) (int64, error) {
	m.lastField, m.lastPattern = field, pattern
	if m.err != nil {
		return 0, m.err
	}
	return m.deleted, nil
}

type mockSurveyService struct {
	lastActor service.Actor
	survey    models.Survey
	cascade   dto.OwnerCascadeResponse
	err       error
}

func (m *mockSurveyService) Create(_ context.Context, actor service.Actor, req dto.SurveyCreateRequest) (models.Survey, error) {
	m.lastActor = actor
	if m.err != nil {
		return models.Survey{}, m.err
	}
	survey := m.survey
	survey.Title = req.Title
	survey.UserID = actor.UserID
	return survey, nil
}

func (m *mockSurveyService) List(_ context.Context, actor service.Actor) ([]models.Survey, error) {
	m.lastActor = actor
	return []models.Survey{m.survey}, m.err
}

func (m *mockSurveyService) Get(_ context.Context, id string, actor service.Actor) (models.Survey, error) {
	m.lastActor = actor
	if m.err != nil {
		return models.Survey{}, m.err
	}
	return m.survey, nil
}

func (m *mockSurveyService) Update(_ context.Context, actor service.Actor, req dto.SurveyUpdateRequest) (models.Survey, error) {
	m.lastActor = actor
	if m.err != nil {
		return models.Survey{}, m.err
	}
	return m.survey, nil
}

func (m *mockSurveyService) Delete(_ context.Context, id string, actor service.Actor) error {
	m.lastActor = actor
	return m.err
}

func (m *mockSurveyService) DeleteByOwner(_ context.Context, ownerID string) (dto.OwnerCascadeResponse, error) {
	if m.err != nil {
		return dto.OwnerCascadeResponse{}, m.err
	}
	result := m.cascade
	result.OwnerID = ownerID
	return result, nil
}

type mockExportService struct {
	result    service.ExportResult
	published dto.SurveyPublishResponse
	err       error
}

func (m *mockExportService) Export(_ context.Context, surveyID string, actor service.Actor) (service.ExportResult, error) {
	if m.err != nil {
		return service.ExportResult{}, m.err
	}
	return m.result, nil
}

func (m *mockExportService) Publish(_ context.Context, surveyID string, actor service.Actor) (dto.SurveyPublishResponse, error) {
	if m.err != nil {
		return dto.SurveyPublishResponse{}, m.err
	}
	return m.published, nil
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// asUser stands in for the JWT middleware.
func asUser(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func jsonRequest(t *testing.T, method, path string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}
