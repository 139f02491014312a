package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/avatair-api/internal/events"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/observability"
	"github.com/noah-isme/avatair-api/internal/repository"
	"github.com/noah-isme/avatair-api/pkg/avatarai"
)

// Actor is the caller identity the transport layer resolved. Survey owners,
// administrators and callers marked Privileged may work against closed
// surveys.
type Actor struct {
	UserID     string
	Role       string
	Privileged bool
}

// GenerateInput describes one generation round. An empty ResponseID runs an
// anonymous preview that is not logged.
type GenerateInput struct {
	ResponseID string
	Iterations int
	Size       int
	Prompt     string
	Actor      Actor
}

// ResponseView is a stored response with its derived lifecycle state.
type ResponseView struct {
	Response models.Response
	State    models.ResponseState
}

// ResponseService drives the response lifecycle against the generative
// service and persists every artifact it returns.
type ResponseService interface {
	Create(ctx context.Context, surveyID string, seed models.Response, actor Actor) (string, error)
	Get(ctx context.Context, responseID string) (ResponseView, error)
	Generate(ctx context.Context, input GenerateInput) (avatarai.Artifact, error)
	RecordRating(ctx context.Context, responseID string, ratings json.RawMessage) error
	Optimize(ctx context.Context, responseID string, ratings json.RawMessage, actor Actor) (avatarai.Stream, error)
	InitializeFinal(ctx context.Context, responseID, prompt string, actor Actor) (avatarai.Stream, error)
	FinalizeResult(ctx context.Context, responseID string, actor Actor) (avatarai.Artifact, error)
	LogPrompt(ctx context.Context, responseID, prompt string) error
	LogImage(ctx context.Context, responseID string, image []byte) error
	Delete(ctx context.Context, responseID string) error
	DeleteBulk(ctx context.Context, field, pattern string) (int64, error)
}

type responseService struct {
	artifacts        repository.ArtifactStore
	surveys          repository.SurveyRepository
	generator        avatarai.Generator
	ids              *IdentifierGenerator
	publisher        events.Publisher
	sanitizer        *bluemonday.Policy
	maxPatternLength int
	logger           zerolog.Logger
	tracer           trace.Tracer
	now              func() time.Time
}

// NewResponseService wires the orchestrator. A nil publisher drops events.
func NewResponseService(artifacts repository.ArtifactStore, surveys repository.SurveyRepository, generator avatarai.Generator, publisher events.Publisher, maxPatternLength int, logger zerolog.Logger) ResponseService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if maxPatternLength <= 0 {
		maxPatternLength = repository.DefaultMaxPatternLength
	}

	return &responseService{
		artifacts:        artifacts,
		surveys:          surveys,
		generator:        generator,
		ids:              NewIdentifierGenerator(artifacts.Exists),
		publisher:        publisher,
		sanitizer:        bluemonday.StrictPolicy(),
		maxPatternLength: maxPatternLength,
		logger:           logger.With().Str("component", "response_service").Logger(),
		tracer:           otel.Tracer("github.com/noah-isme/avatair-api/internal/service/response"),
		now:              time.Now,
	}
}

func (s *responseService) Create(ctx context.Context, surveyID string, seed models.Response, actor Actor) (id string, err error) {
	ctx, finish := s.begin(ctx, "create", attribute.String("survey.id", surveyID))
	defer func() { finish(err) }()

	surveyID = strings.TrimSpace(surveyID)
	if surveyID == "" {
		return "", validationError(errors.New("surveyId is required"))
	}
	if err := seed.ValidateScores(); err != nil {
		return "", validationError(err)
	}

	survey, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return "", translateNotFound(err, ErrSurveyNotFound)
	}
	if !mayParticipate(survey, actor) {
		return "", ErrSurveyClosed
	}

	id, err = s.ids.Next(ctx)
	if err != nil {
		return "", err
	}

	partial := models.Response{
		ID:              id,
		ResponseID:      id,
		CreatedAt:       s.now().UTC(),
		ActiveField:     seed.ActiveField,
		SliderScore:     seed.SliderScore,
		StarScore:       seed.StarScore,
		SelectScore:     seed.SelectScore,
		SwipeScore:      seed.SwipeScore,
		FilterResponses: seed.FilterResponses,
	}
	if _, err := s.artifacts.CreateResponse(ctx, surveyID, partial); err != nil {
		return "", err
	}

	s.emit(ctx, events.Event{Type: events.ResponseCreated, ResponseID: id, SurveyID: surveyID})
	s.logger.Info().Str("response_id", id).Str("survey_id", surveyID).Bool("privileged", actor.Privileged).Msg("response created")

	return id, nil
}

func (s *responseService) Get(ctx context.Context, responseID string) (ResponseView, error) {
	response, err := s.artifacts.Get(ctx, repository.ResponseQuery{ID: responseID})
	if err != nil {
		return ResponseView{}, translateNotFound(err, ErrResponseNotFound)
	}

	threshold := 0
	survey, err := s.surveys.GetByID(ctx, response.SurveyID)
	switch {
	case err == nil:
		threshold = survey.ImageThreshold()
	case !errors.Is(err, repository.ErrNotFound):
		return ResponseView{}, err
	}

	return ResponseView{Response: response, State: models.InferState(response, threshold)}, nil
}

func (s *responseService) Generate(ctx context.Context, input GenerateInput) (artifact avatarai.Artifact, err error) {
	ctx, finish := s.begin(ctx, "generate", attribute.Bool("session", input.ResponseID != ""))
	defer func() { finish(err) }()

	if input.Iterations < 0 || input.Size < 0 {
		return avatarai.Artifact{}, validationError(errors.New("iterations and size must not be negative"))
	}

	var surveyID string
	if input.ResponseID != "" {
		response, _, err := s.session(ctx, input.ResponseID, input.Actor)
		if err != nil {
			return avatarai.Artifact{}, err
		}
		surveyID = response.SurveyID
	}

	if input.Size == 0 {
		input.Size = 1
	}

	artifact, err = s.generator.GenerateAvatar(ctx, avatarai.AvatarRequest{
		ResponseID: input.ResponseID,
		Iterations: input.Iterations,
		Size:       input.Size,
		Prompt:     s.clean(input.Prompt),
	})
	if err != nil {
		return avatarai.Artifact{}, err
	}

	if input.ResponseID == "" {
		return artifact, nil
	}

	if err := s.appendArtifact(ctx, input.ResponseID, artifact); err != nil {
		return avatarai.Artifact{}, err
	}

	s.emit(ctx, events.Event{Type: events.ResponseRound, ResponseID: input.ResponseID, SurveyID: surveyID, Step: "generate"})
	return artifact, nil
}

func (s *responseService) RecordRating(ctx context.Context, responseID string, ratings json.RawMessage) error {
	if strings.TrimSpace(responseID) == "" {
		return validationError(errors.New("responseId is required"))
	}
	if len(ratings) == 0 || !json.Valid(ratings) {
		return validationError(errors.New("ratings must be valid JSON"))
	}

	if err := s.artifacts.AppendRating(ctx, responseID, ratings); err != nil {
		return translateNotFound(err, ErrResponseNotFound)
	}
	return nil
}

func (s *responseService) Optimize(ctx context.Context, responseID string, ratings json.RawMessage, actor Actor) (stream avatarai.Stream, err error) {
	ctx, finish := s.begin(ctx, "optimize")
	defer func() { finish(err) }()

	response, _, err := s.session(ctx, responseID, actor)
	if err != nil {
		return avatarai.Stream{}, err
	}

	if err := s.RecordRating(ctx, responseID, ratings); err != nil {
		return avatarai.Stream{}, err
	}

	stream, err = s.generator.Optimize(ctx, avatarai.OptimizeRequest{ResponseID: responseID, Ratings: ratings})
	if err != nil {
		return avatarai.Stream{}, err
	}

	s.emit(ctx, events.Event{Type: events.ResponseRound, ResponseID: responseID, SurveyID: response.SurveyID, Step: "optimize"})
	return stream, nil
}

func (s *responseService) InitializeFinal(ctx context.Context, responseID, prompt string, actor Actor) (stream avatarai.Stream, err error) {
	ctx, finish := s.begin(ctx, "initialize_final")
	defer func() { finish(err) }()

	response, survey, err := s.session(ctx, responseID, actor)
	if err != nil {
		return avatarai.Stream{}, err
	}

	preVariables, err := json.Marshal(survey.PreVariables.Data())
	if err != nil {
		return avatarai.Stream{}, fmt.Errorf("encode pre-variables: %w", err)
	}

	stream, err = s.generator.RequestFinal(ctx, avatarai.FinalRequest{
		PreVariables: preVariables,
		Ratings:      response.Ratings,
		Prompt:       s.clean(prompt),
		Size:         survey.Parameters.Data().AvatarsPerPage,
		ResponseID:   responseID,
	})
	if err != nil {
		return avatarai.Stream{}, err
	}

	s.emit(ctx, events.Event{Type: events.ResponseRound, ResponseID: responseID, SurveyID: survey.ID, Step: "finalize"})
	return stream, nil
}

func (s *responseService) FinalizeResult(ctx context.Context, responseID string, actor Actor) (artifact avatarai.Artifact, err error) {
	ctx, finish := s.begin(ctx, "finalize_result")
	defer func() { finish(err) }()

	response, _, err := s.session(ctx, responseID, actor)
	if err != nil {
		return avatarai.Artifact{}, err
	}

	artifact, err = s.generator.FetchResult(ctx, responseID)
	if err != nil {
		return avatarai.Artifact{}, err
	}

	if err := s.appendArtifact(ctx, responseID, artifact); err != nil {
		return avatarai.Artifact{}, err
	}

	s.emit(ctx, events.Event{Type: events.ResponseCompleted, ResponseID: responseID, SurveyID: response.SurveyID})
	s.logger.Info().Str("response_id", responseID).Msg("response finalized")
	return artifact, nil
}

func (s *responseService) LogPrompt(ctx context.Context, responseID, prompt string) error {
	cleaned := s.clean(prompt)
	if cleaned == "" {
		return validationError(errors.New("prompt must not be empty"))
	}
	return translateNotFound(s.artifacts.AppendPrompt(ctx, responseID, cleaned), ErrResponseNotFound)
}

func (s *responseService) LogImage(ctx context.Context, responseID string, image []byte) error {
	if len(image) == 0 {
		return validationError(errors.New("image must not be empty"))
	}
	return translateNotFound(s.artifacts.AppendImage(ctx, responseID, image), ErrResponseNotFound)
}

func (s *responseService) Delete(ctx context.Context, responseID string) error {
	if err := s.artifacts.DeleteOne(ctx, responseID); err != nil {
		return translateNotFound(err, ErrResponseNotFound)
	}

	observability.ResponsesDeleted().WithLabelValues("single").Inc()
	s.emit(ctx, events.Event{Type: events.ResponseDeleted, ResponseID: responseID, Count: 1})
	return nil
}

func (s *responseService) DeleteBulk(ctx context.Context, field, pattern string) (int64, error) {
	matcher, err := repository.NewMatcher(field, pattern, s.maxPatternLength)
	if err != nil {
		return 0, validationError(err)
	}

	deleted, err := s.artifacts.DeleteMany(ctx, matcher)
	if err != nil {
		return 0, err
	}

	observability.ResponsesDeleted().WithLabelValues("bulk").Add(float64(deleted))
	s.emit(ctx, events.Event{Type: events.ResponseDeleted, Count: deleted})
	s.logger.Info().Str("field", matcher.Field).Str("pattern", matcher.Pattern).Int64("deleted", deleted).Msg("responses deleted by pattern")
	return deleted, nil
}

// session loads a response and its survey and checks that the survey still
// accepts rounds for this actor. It runs before any remote call.
func (s *responseService) session(ctx context.Context, responseID string, actor Actor) (models.Response, models.Survey, error) {
	if strings.TrimSpace(responseID) == "" {
		return models.Response{}, models.Survey{}, validationError(errors.New("responseId is required"))
	}

	response, err := s.artifacts.Get(ctx, repository.ResponseQuery{ID: responseID})
	if err != nil {
		return models.Response{}, models.Survey{}, translateNotFound(err, ErrResponseNotFound)
	}

	survey, err := s.surveys.GetByID(ctx, response.SurveyID)
	if err != nil {
		return models.Response{}, models.Survey{}, translateNotFound(err, ErrSurveyNotFound)
	}
	if !mayParticipate(survey, actor) {
		return models.Response{}, models.Survey{}, ErrSurveyClosed
	}

	return response, survey, nil
}

// appendArtifact logs the prompt first, then the image, keeping both logs
// index-aligned by round.
func (s *responseService) appendArtifact(ctx context.Context, responseID string, artifact avatarai.Artifact) error {
	if err := s.artifacts.AppendPrompt(ctx, responseID, artifact.Prompt); err != nil {
		return translateNotFound(err, ErrResponseNotFound)
	}
	if err := s.artifacts.AppendImage(ctx, responseID, artifact.Image); err != nil {
		return translateNotFound(err, ErrResponseNotFound)
	}
	return nil
}

// mayParticipate reports whether the actor may run rounds against the survey.
// Closed surveys stay reachable for their owner and administrators.
func mayParticipate(survey models.Survey, actor Actor) bool {
	if survey.IsOpen() || actor.Privileged || actor.IsAdmin() {
		return true
	}
	return actor.UserID != "" && actor.UserID == survey.UserID
}

func (s *responseService) clean(prompt string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(prompt)))
}

func (s *responseService) emit(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Str("response_id", event.ResponseID).Msg("failed to publish lifecycle event")
	}
}

func (s *responseService) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "response."+operation, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()
		observability.ResponseOperationDuration().WithLabelValues(operation).Observe(time.Since(start).Seconds())

		outcome := "success"
		if err != nil {
			outcome = outcomeFor(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.ResponseOperations().WithLabelValues(operation, outcome).Inc()
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPolicyViolation):
		return "policy"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrRemoteServiceUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrStorageFailure):
		return "storage"
	default:
		return "error"
	}
}
