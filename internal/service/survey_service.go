package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/repository"
)

// RoleAdmin is the token role granted administrative access.
const RoleAdmin = "admin"

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin)
}

// SurveyService manages survey definitions and their cascades.
type SurveyService interface {
	Create(ctx context.Context, actor Actor, req dto.SurveyCreateRequest) (models.Survey, error)
	List(ctx context.Context, actor Actor) ([]models.Survey, error)
	Get(ctx context.Context, id string, actor Actor) (models.Survey, error)
	Update(ctx context.Context, actor Actor, req dto.SurveyUpdateRequest) (models.Survey, error)
	Delete(ctx context.Context, id string, actor Actor) error
	DeleteByOwner(ctx context.Context, ownerID string) (dto.OwnerCascadeResponse, error)
}

type surveyService struct {
	surveys   repository.SurveyRepository
	artifacts repository.ArtifactStore
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSurveyService constructs the survey service.
func NewSurveyService(surveys repository.SurveyRepository, artifacts repository.ArtifactStore, validate *validator.Validate, logger zerolog.Logger) SurveyService {
	return &surveyService{
		surveys:   surveys,
		artifacts: artifacts,
		validate:  validate,
		logger:    logger.With().Str("component", "survey_service").Logger(),
		now:       time.Now,
	}
}

func (s *surveyService) Create(ctx context.Context, actor Actor, req dto.SurveyCreateRequest) (models.Survey, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.Survey{}, validationError(err)
	}
	if actor.UserID == "" {
		return models.Survey{}, validationError(errors.New("owner is required"))
	}

	scales := dto.ToRatingScales(req.RatingScales)
	if len(scales) == 0 {
		scales = models.DefaultRatingScales()
	}

	now := s.now().UTC()
	survey := models.Survey{
		ID:                  uuid.NewString(),
		UserID:              actor.UserID,
		Activated:           req.Activated,
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		FilterQuestions:     req.FilterQuestions,
		Parameters:          datatypes.NewJSONType(req.Parameters.Apply(models.DefaultSurveyParameters())),
		GenerativeVariables: datatypes.NewJSONType(dto.ToGenerativeVariables(req.GenerativeVariables)),
		RatingScales:        datatypes.NewJSONType(scales),
		Prompt:              req.Prompt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.PreVariables != nil {
		survey.PreVariables = datatypes.NewJSONType(*req.PreVariables)
	}
	if req.WelcomePage != nil {
		survey.WelcomePage = datatypes.NewJSONType(*req.WelcomePage)
	}
	if req.EndPage != nil {
		survey.EndPage = datatypes.NewJSONType(*req.EndPage)
	}

	if err := s.surveys.Create(ctx, &survey); err != nil {
		return models.Survey{}, err
	}

	s.logger.Info().Str("survey_id", survey.ID).Str("owner_id", survey.UserID).Msg("survey created")
	return survey, nil
}

func (s *surveyService) List(ctx context.Context, actor Actor) ([]models.Survey, error) {
	surveys, err := s.surveys.List(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if surveys == nil {
		surveys = []models.Survey{}
	}
	return surveys, nil
}

// Get returns a survey visible to the actor: owners and admins see every
// survey, everyone else only activated ones.
func (s *surveyService) Get(ctx context.Context, id string, actor Actor) (models.Survey, error) {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return models.Survey{}, translateNotFound(err, ErrSurveyNotFound)
	}
	if survey.UserID != actor.UserID && !actor.IsAdmin() && !survey.IsOpen() {
		return models.Survey{}, ErrSurveyNotFound
	}
	return survey, nil
}

func (s *surveyService) Update(ctx context.Context, actor Actor, req dto.SurveyUpdateRequest) (models.Survey, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.Survey{}, validationError(err)
	}

	survey, err := ownedSurvey(ctx, s.surveys, req.ID, actor)
	if err != nil {
		return models.Survey{}, err
	}
	if survey.Activated && req.Activated == nil {
		return models.Survey{}, ErrSurveyActivated
	}

	if req.Title != nil {
		survey.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		survey.Description = *req.Description
	}
	if req.FilterQuestions != nil {
		survey.FilterQuestions = *req.FilterQuestions
	}
	if req.Activated != nil {
		survey.Activated = *req.Activated
	}
	if req.Parameters != nil {
		survey.Parameters = datatypes.NewJSONType(req.Parameters.Apply(survey.Parameters.Data()))
	}
	if req.PreVariables != nil {
		survey.PreVariables = datatypes.NewJSONType(*req.PreVariables)
	}
	if req.GenerativeVariables != nil {
		survey.GenerativeVariables = datatypes.NewJSONType(dto.ToGenerativeVariables(req.GenerativeVariables))
	}
	if req.RatingScales != nil {
		survey.RatingScales = datatypes.NewJSONType(dto.ToRatingScales(req.RatingScales))
	}
	if req.WelcomePage != nil {
		survey.WelcomePage = datatypes.NewJSONType(*req.WelcomePage)
	}
	if req.EndPage != nil {
		survey.EndPage = datatypes.NewJSONType(*req.EndPage)
	}
	if req.Prompt != nil {
		survey.Prompt = *req.Prompt
	}
	survey.UpdatedAt = s.now().UTC()

	if err := s.surveys.Update(ctx, &survey); err != nil {
		return models.Survey{}, err
	}

	return survey, nil
}

// Delete removes the survey's responses before the survey itself.
func (s *surveyService) Delete(ctx context.Context, id string, actor Actor) error {
	survey, err := ownedSurvey(ctx, s.surveys, id, actor)
	if err != nil {
		return err
	}

	removed, err := s.artifacts.DeleteBySurvey(ctx, survey.ID)
	if err != nil {
		return err
	}
	if err := s.surveys.Delete(ctx, survey.ID); err != nil {
		return translateNotFound(err, ErrSurveyNotFound)
	}

	s.logger.Info().Str("survey_id", survey.ID).Int64("responses_deleted", removed).Msg("survey deleted")
	return nil
}

// DeleteByOwner cascades a removed account to its surveys and, through them,
// to every response.
func (s *surveyService) DeleteByOwner(ctx context.Context, ownerID string) (dto.OwnerCascadeResponse, error) {
	result := dto.OwnerCascadeResponse{OwnerID: ownerID}
	if strings.TrimSpace(ownerID) == "" {
		return result, validationError(errors.New("owner id is required"))
	}

	ids, err := s.surveys.ListIDsByOwner(ctx, ownerID)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		removed, err := s.artifacts.DeleteBySurvey(ctx, id)
		if err != nil {
			return result, err
		}
		result.ResponsesDeleted += removed
	}

	deleted, err := s.surveys.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return result, err
	}
	result.SurveysDeleted = deleted

	s.logger.Info().Str("owner_id", ownerID).Int64("surveys", deleted).Int64("responses", result.ResponsesDeleted).Msg("owner surveys deleted")
	return result, nil
}

// ownedSurvey loads a survey the actor may manage. Surveys owned by someone
// else are reported as missing.
func ownedSurvey(ctx context.Context, surveys repository.SurveyRepository, id string, actor Actor) (models.Survey, error) {
	if strings.TrimSpace(id) == "" {
		return models.Survey{}, validationError(errors.New("survey id is required"))
	}

	filter := repository.SurveyFilter{ID: id}
	if !actor.IsAdmin() {
		if actor.UserID == "" {
			return models.Survey{}, ErrSurveyNotFound
		}
		filter.OwnerID = actor.UserID
	}

	survey, err := surveys.FindOne(ctx, filter)
	if err != nil {
		return models.Survey{}, translateNotFound(err, ErrSurveyNotFound)
	}
	return survey, nil
}
