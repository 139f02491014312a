package dto

import (
	"github.com/noah-isme/avatair-api/internal/models"
)

// SurveyParametersPayload carries optional overrides of the survey defaults.
type SurveyParametersPayload struct {
	MaxIterations   *int  `json:"maxIterations" validate:"omitempty,min=1,max=100"`
	AvatarsPerPage  *int  `json:"avatarsPerPage" validate:"omitempty,min=1,max=64"`
	Abort           *bool `json:"abort"`
	ExplainDecision *bool `json:"explainDecision"`
	ExplainRequired *bool `json:"explainRequired"`
	GenerateAvatar  *bool `json:"generateAvatar"`
	Webcam          *bool `json:"webcam"`
	ImageUpload     *bool `json:"imageUpload"`
	WelcomePage     *bool `json:"welcomePage"`
	EndPage         *bool `json:"endPage"`
	FinalSelection  *bool `json:"finalSelection"`
}

// Apply overlays the provided fields onto params.
func (p *SurveyParametersPayload) Apply(params models.SurveyParameters) models.SurveyParameters {
	if p == nil {
		return params
	}
	setInt(&params.MaxIterations, p.MaxIterations)
	setInt(&params.AvatarsPerPage, p.AvatarsPerPage)
	setBool(&params.Abort, p.Abort)
	setBool(&params.ExplainDecision, p.ExplainDecision)
	setBool(&params.ExplainRequired, p.ExplainRequired)
	setBool(&params.GenerateAvatar, p.GenerateAvatar)
	setBool(&params.Webcam, p.Webcam)
	setBool(&params.ImageUpload, p.ImageUpload)
	setBool(&params.WelcomePage, p.WelcomePage)
	setBool(&params.EndPage, p.EndPage)
	setBool(&params.FinalSelection, p.FinalSelection)
	return params
}

// RatingScalePayload describes one rating scale in a survey payload.
type RatingScalePayload struct {
	Name      string `json:"name" validate:"required,max=120"`
	Type      string `json:"type" validate:"required,oneof=Slider Star Select Swipe"`
	Text      string `json:"text" validate:"max=2000"`
	LabelGood string `json:"labelGood" validate:"max=255"`
	LabelBad  string `json:"labelBad" validate:"max=255"`
}

// GenerativeVariablePayload names a variable the generator may vary.
type GenerativeVariablePayload struct {
	Name  string `json:"name" validate:"required,max=120"`
	Range string `json:"range" validate:"max=255"`
}

// SurveyCreateRequest is the payload for creating a survey.
type SurveyCreateRequest struct {
	Title               string                      `json:"title" validate:"required,max=255"`
	Description         string                      `json:"description" validate:"max=5000"`
	FilterQuestions     string                      `json:"filterQuestions" validate:"max=5000"`
	Activated           bool                        `json:"activated"`
	Parameters          *SurveyParametersPayload    `json:"parameters"`
	PreVariables        *models.PreVariables        `json:"preVariables"`
	GenerativeVariables []GenerativeVariablePayload `json:"generativeVariables" validate:"omitempty,dive"`
	RatingScales        []RatingScalePayload        `json:"ratingScales" validate:"omitempty,dive"`
	WelcomePage         *models.TextPage            `json:"welcomePage"`
	EndPage             *models.TextPage            `json:"endPage"`
	Prompt              string                      `json:"prompt" validate:"max=5000"`
}

// SurveyUpdateRequest is a partial update. Activated being present is what
// unlocks edits to an already activated survey.
type SurveyUpdateRequest struct {
	ID                  string                      `json:"_id" validate:"required"`
	Title               *string                     `json:"title" validate:"omitempty,min=1,max=255"`
	Description         *string                     `json:"description" validate:"omitempty,max=5000"`
	FilterQuestions     *string                     `json:"filterQuestions" validate:"omitempty,max=5000"`
	Activated           *bool                       `json:"activated"`
	Parameters          *SurveyParametersPayload    `json:"parameters"`
	PreVariables        *models.PreVariables        `json:"preVariables"`
	GenerativeVariables []GenerativeVariablePayload `json:"generativeVariables" validate:"omitempty,dive"`
	RatingScales        []RatingScalePayload        `json:"ratingScales" validate:"omitempty,dive"`
	WelcomePage         *models.TextPage            `json:"welcomePage"`
	EndPage             *models.TextPage            `json:"endPage"`
	Prompt              *string                     `json:"prompt" validate:"omitempty,max=5000"`
}

// SurveyIDRequest identifies a survey in a request body.
type SurveyIDRequest struct {
	ID string `json:"_id" validate:"required"`
}

// SurveyPublishResponse carries the published archive location.
type SurveyPublishResponse struct {
	SurveyID string `json:"surveyId"`
	URL      string `json:"url"`
	Bytes    int    `json:"bytes"`
}

// OwnerCascadeResponse reports what an owner cascade removed.
type OwnerCascadeResponse struct {
	OwnerID          string `json:"ownerId"`
	SurveysDeleted   int64  `json:"surveysDeleted"`
	ResponsesDeleted int64  `json:"responsesDeleted"`
}

// ToRatingScales converts payload scales into model scales.
func ToRatingScales(items []RatingScalePayload) []models.RatingScale {
	scales := make([]models.RatingScale, 0, len(items))
	for _, item := range items {
		scales = append(scales, models.RatingScale{
			Name:      item.Name,
			Type:      item.Type,
			Text:      item.Text,
			LabelGood: item.LabelGood,
			LabelBad:  item.LabelBad,
		})
	}
	return scales
}

// ToGenerativeVariables converts payload variables into model variables.
func ToGenerativeVariables(items []GenerativeVariablePayload) []models.GenerativeVariable {
	variables := make([]models.GenerativeVariable, 0, len(items))
	for _, item := range items {
		variables = append(variables, models.GenerativeVariable{Name: item.Name, Range: item.Range})
	}
	return variables
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
