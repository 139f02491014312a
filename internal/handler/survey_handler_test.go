package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/avatair-api/internal/config"
	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/handler"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/service"
)

func newSurveyApp(surveys *mockSurveyService, exports *mockExportService, guards handler.Guards) *fiber.App {
	app := fiber.New()
	logger := zerolog.New(io.Discard)
	handler.NewSurveyHandler(surveys, exports, newValidator(), logger).Register(app.Group("/api/v1/surveys"), guards)
	handler.NewAdminHandler(surveys, logger).Register(app.Group("/api/v1/admin"), guards)
	return app
}

func TestSurveyHandler_CreateUsesCaller(t *testing.T) {
	surveys := &mockSurveyService{survey: models.Survey{ID: "survey-1"}}
	app := newSurveyApp(surveys, &mockExportService{}, handler.Guards{Required: asUser("owner-1", "")})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/surveys/create", map[string]string{"title": "Faces"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Data models.Survey `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "survey-1", payload.Data.ID)
	require.Equal(t, "owner-1", payload.Data.UserID)
	require.Equal(t, "Faces", payload.Data.Title)
}

func TestSurveyHandler_EditLockedIsForbidden(t *testing.T) {
	surveys := &mockSurveyService{err: service.ErrSurveyActivated}
	app := newSurveyApp(surveys, &mockExportService{}, handler.Guards{Required: asUser("owner-1", "")})

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/api/v1/surveys/edit", map[string]string{"_id": "survey-1", "title": "x"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSurveyHandler_GetMissing(t *testing.T) {
	app := newSurveyApp(&mockSurveyService{err: service.ErrSurveyNotFound}, &mockExportService{}, handler.Guards{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/surveys/survey-9", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSurveyHandler_DownloadSendsArchive(t *testing.T) {
	exports := &mockExportService{result: service.ExportResult{
		Filename:    service.ArchiveFilename,
		ContentType: service.ArchiveContentType,
		Data:        []byte("PK\x03\x04"),
	}}
	app := newSurveyApp(&mockSurveyService{}, exports, handler.Guards{Required: asUser("owner-1", "")})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/surveys/download", map[string]string{"_id": "survey-1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "application/zip", resp.Header.Get(fiber.HeaderContentType))
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "survey.zip")
	require.Equal(t, []byte("PK\x03\x04"), readBody(t, resp))

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/surveys/download", map[string]string{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSurveyHandler_Publish(t *testing.T) {
	exports := &mockExportService{published: dto.SurveyPublishResponse{SurveyID: "survey-1", URL: "https://cdn.test/survey.zip", Bytes: 10}}
	app := newSurveyApp(&mockSurveyService{}, exports, handler.Guards{Required: asUser("owner-1", "")})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/surveys/publish", map[string]string{"_id": "survey-1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.SurveyPublishResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "https://cdn.test/survey.zip", payload.Data.URL)

	exports.err = service.ErrPublishingDisabled
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/surveys/publish", map[string]string{"_id": "survey-1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	exports.err = errors.New("bucket unavailable")
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/surveys/publish", map[string]string{"_id": "survey-1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestAdminHandler_DeleteOwnerSurveys(t *testing.T) {
	surveys := &mockSurveyService{cascade: dto.OwnerCascadeResponse{SurveysDeleted: 2, ResponsesDeleted: 5}}
	app := newSurveyApp(surveys, &mockExportService{}, handler.Guards{Admin: asUser("ops", "admin")})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/owner-1/surveys", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.OwnerCascadeResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, dto.OwnerCascadeResponse{OwnerID: "owner-1", SurveysDeleted: 2, ResponsesDeleted: 5}, payload.Data)
}

func TestHealthCheckReportsProbes(t *testing.T) {
	cfg := config.Config{AppName: "Avatair API", AppEnv: "test"}

	app := fiber.New()
	app.Get("/ok", handler.HealthCheck(cfg, map[string]handler.HealthProbe{
		"database": func(context.Context) error { return nil },
	}))
	app.Get("/degraded", handler.HealthCheck(cfg, map[string]handler.HealthProbe{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "ok", payload.Data.Status)
	require.Equal(t, "ok", payload.Data.Checks["database"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/degraded", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
