package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/avatair-api/internal/events"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/repository"
	"github.com/noah-isme/avatair-api/pkg/avatarai"
)

func newTestResponseService(t *testing.T) (ResponseService, testStores, *stubGenerator, *recordingPublisher) {
	t.Helper()

	stores := newTestStores(t)
	generator := newStubGenerator()
	publisher := &recordingPublisher{}
	svc := NewResponseService(stores.artifacts, stores.surveys, generator, publisher, 0, testLogger())
	return svc, stores, generator, publisher
}

func TestResponseServiceCreatePolicy(t *testing.T) {
	svc, stores, _, publisher := newTestResponseService(t)
	ctx := context.Background()

	stores.seedSurvey(t, "closed", false, 2, 2)
	stores.seedSurvey(t, "open", true, 2, 2)

	_, err := svc.Create(ctx, "closed", models.Response{}, Actor{})
	require.ErrorIs(t, err, ErrSurveyClosed)
	require.ErrorIs(t, err, ErrPolicyViolation)

	id, err := svc.Create(ctx, "closed", models.Response{}, Actor{UserID: "owner-1", Privileged: true})
	require.NoError(t, err)
	require.Regexp(t, `^responseid[0-9a-f]{32}$`, id)

	_, err = svc.Create(ctx, "closed", models.Response{}, Actor{UserID: "owner-1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "closed", models.Response{}, Actor{UserID: "stranger"})
	require.ErrorIs(t, err, ErrSurveyClosed)

	id, err = svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "open", view.Response.SurveyID)
	require.Equal(t, id, view.Response.ResponseID)
	require.Equal(t, models.StateCreated, view.State)

	_, err = svc.Create(ctx, "missing", models.Response{}, Actor{Privileged: true})
	require.ErrorIs(t, err, ErrSurveyNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, []string{events.ResponseCreated, events.ResponseCreated, events.ResponseCreated}, publisher.types())
}

func TestResponseServiceCreateRejectsConflictingScores(t *testing.T) {
	svc, stores, _, _ := newTestResponseService(t)
	stores.seedSurvey(t, "open", true, 2, 2)

	seed := models.Response{
		ActiveField: models.ScoreFieldStar,
		SliderScore: datatypes.JSONMap{"looks": 3},
	}
	_, err := svc.Create(context.Background(), "open", seed, Actor{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestResponseServiceCreateIDsAreUnique(t *testing.T) {
	svc, stores, _, _ := newTestResponseService(t)
	stores.seedSurvey(t, "open", true, 2, 2)

	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		id, err := svc.Create(context.Background(), "open", models.Response{}, Actor{})
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestResponseServiceGenerateThenFinalize(t *testing.T) {
	svc, stores, generator, publisher := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "open", true, 1, 1)

	id, err := svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)

	artifact, err := svc.Generate(ctx, GenerateInput{ResponseID: id, Iterations: 1, Size: 1, Prompt: "<b>smiling</b> person's face"})
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), artifact.Image)
	require.Equal(t, "smiling person's face", generator.avatarReqs[0].Prompt)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StateGenerating, view.State)

	result, err := svc.FinalizeResult(ctx, id, Actor{})
	require.NoError(t, err)
	require.Equal(t, []byte("result-bytes"), result.Image)

	view, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StateComplete, view.State)
	require.Equal(t, []string{"remote prompt", "final prompt"}, view.Response.PromptStrings)
	require.Len(t, view.Response.GeneratedImageBatch, len(view.Response.PromptStrings))

	require.Contains(t, publisher.types(), events.ResponseRound)
	require.Contains(t, publisher.types(), events.ResponseCompleted)
}

func TestResponseServiceAnonymousGenerateIsNotLogged(t *testing.T) {
	svc, stores, generator, _ := newTestResponseService(t)

	artifact, err := svc.Generate(context.Background(), GenerateInput{Prompt: "preview"})
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Image)
	require.Equal(t, 1, generator.avatarReqs[0].Size)

	var prompts int64
	require.NoError(t, stores.db.Model(&models.ResponsePrompt{}).Count(&prompts).Error)
	require.Zero(t, prompts)
}

func TestResponseServiceInvalidSessionNeverReachesRemote(t *testing.T) {
	svc, stores, generator, _ := newTestResponseService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateInput{ResponseID: "responseidmissing"})
	require.ErrorIs(t, err, ErrResponseNotFound)

	stores.seedSurvey(t, "closed", false, 2, 2)
	id, err := svc.Create(ctx, "closed", models.Response{}, Actor{Privileged: true})
	require.NoError(t, err)

	_, err = svc.Generate(ctx, GenerateInput{ResponseID: id})
	require.ErrorIs(t, err, ErrSurveyClosed)

	_, err = svc.FinalizeResult(ctx, id, Actor{})
	require.ErrorIs(t, err, ErrSurveyClosed)

	_, err = svc.Optimize(ctx, "responseidmissing", json.RawMessage(`{}`), Actor{})
	require.ErrorIs(t, err, ErrResponseNotFound)

	_, err = svc.InitializeFinal(ctx, "responseidmissing", "prompt", Actor{})
	require.ErrorIs(t, err, ErrResponseNotFound)

	require.Empty(t, generator.calls)

	_, err = svc.Generate(ctx, GenerateInput{ResponseID: id, Actor: Actor{Privileged: true}})
	require.NoError(t, err)
	require.Equal(t, []string{"avatar"}, generator.calls)
}

func TestResponseServiceInitializeFinalRejectsClosedSurvey(t *testing.T) {
	svc, stores, generator, _ := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "closed", false, 2, 2)

	id, err := svc.Create(ctx, "closed", models.Response{}, Actor{Privileged: true})
	require.NoError(t, err)

	_, err = svc.InitializeFinal(ctx, id, "final look", Actor{})
	require.ErrorIs(t, err, ErrSurveyClosed)
	require.ErrorIs(t, err, ErrPolicyViolation)

	_, err = svc.InitializeFinal(ctx, id, "final look", Actor{UserID: "stranger"})
	require.ErrorIs(t, err, ErrPolicyViolation)
	require.Empty(t, generator.calls)

	_, err = svc.InitializeFinal(ctx, id, "final look", Actor{UserID: "owner-1"})
	require.NoError(t, err)
	require.Equal(t, []string{"final"}, generator.calls)
}

func TestResponseServiceRemoteFailureLogsNothing(t *testing.T) {
	svc, stores, generator, _ := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "open", true, 2, 2)

	id, err := svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)

	generator.err = avatarai.ErrUnavailable
	_, err = svc.Generate(ctx, GenerateInput{ResponseID: id})
	require.ErrorIs(t, err, ErrRemoteServiceUnavailable)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, view.Response.PromptStrings)
	require.Empty(t, view.Response.GeneratedImageBatch)
}

func TestResponseServiceOptimizeRecordsRatingFirst(t *testing.T) {
	svc, stores, generator, _ := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "open", true, 2, 2)

	id, err := svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)

	stream, err := svc.Optimize(ctx, id, json.RawMessage(`{"looks":4}`), Actor{})
	require.NoError(t, err)
	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	require.Equal(t, "optimized", string(body))
	require.JSONEq(t, `{"looks":4}`, string(generator.optimizeReqs[0].Ratings))

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Response.Ratings, 1)

	generator.err = avatarai.ErrUnavailable
	_, err = svc.Optimize(ctx, id, json.RawMessage(`{"looks":2}`), Actor{})
	require.ErrorIs(t, err, ErrRemoteServiceUnavailable)

	view, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Response.Ratings, 2)

	require.ErrorIs(t, svc.RecordRating(ctx, id, json.RawMessage(`{broken`)), ErrValidation)
}

func TestResponseServiceInitializeFinal(t *testing.T) {
	svc, stores, generator, _ := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "open", true, 3, 6)

	id, err := svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)
	require.NoError(t, svc.RecordRating(ctx, id, json.RawMessage(`{"round":1}`)))

	_, err = svc.InitializeFinal(ctx, id, "final look", Actor{})
	require.NoError(t, err)

	req := generator.finalReqs[0]
	require.Equal(t, id, req.ResponseID)
	require.Equal(t, 6, req.Size)
	require.Equal(t, "final look", req.Prompt)
	require.Len(t, req.Ratings, 1)

	var pre models.PreVariables
	require.NoError(t, json.Unmarshal(req.PreVariables, &pre))
	require.Equal(t, []string{"female"}, pre.Gender)

	require.NoError(t, stores.surveys.Delete(ctx, "open"))
	_, err = svc.InitializeFinal(ctx, id, "final look", Actor{})
	require.ErrorIs(t, err, ErrSurveyNotFound)
}

func TestResponseServiceDeletes(t *testing.T) {
	svc, stores, _, _ := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "open", true, 2, 2)

	first, err := svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, first))
	require.ErrorIs(t, svc.Delete(ctx, first), ErrResponseNotFound)

	_, err = svc.DeleteBulk(ctx, "promptStrings", ".*")
	require.ErrorIs(t, err, ErrValidation)
	require.True(t, errors.Is(err, repository.ErrInvalidPattern))

	_, err = svc.DeleteBulk(ctx, "responseId", "(")
	require.ErrorIs(t, err, ErrValidation)

	deleted, err := svc.DeleteBulk(ctx, "surveyId", "^open$")
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	remaining, err := stores.artifacts.ListBySurvey(ctx, "open")
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestResponseServiceLogHelpers(t *testing.T) {
	svc, stores, _, _ := newTestResponseService(t)
	ctx := context.Background()
	stores.seedSurvey(t, "open", true, 2, 2)

	id, err := svc.Create(ctx, "open", models.Response{}, Actor{})
	require.NoError(t, err)

	require.NoError(t, svc.LogPrompt(ctx, id, "manual prompt"))
	require.NoError(t, svc.LogImage(ctx, id, []byte{1, 2, 3}))
	require.ErrorIs(t, svc.LogPrompt(ctx, id, "<p></p>"), ErrValidation)
	require.ErrorIs(t, svc.LogImage(ctx, "responseidmissing", []byte{1}), ErrResponseNotFound)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"manual prompt"}, view.Response.PromptStrings)
	require.Equal(t, [][]byte{{1, 2, 3}}, view.Response.GeneratedImageBatch)
}
