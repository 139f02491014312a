package dto

import (
	"encoding/json"
	"time"
)

// ResponseCreateRequest starts a response session against a survey.
type ResponseCreateRequest struct {
	SurveyID        string             `json:"surveyId" validate:"required,max=64"`
	ActiveField     string             `json:"activeField" validate:"omitempty,oneof=sliderScore starScore selectScore swipeScore"`
	SliderScore     map[string]float64 `json:"sliderScore"`
	StarScore       map[string]float64 `json:"starScore"`
	SelectScore     map[string]float64 `json:"selectScore"`
	SwipeScore      map[string]float64 `json:"swipeScore"`
	FilterResponses []string           `json:"filterResponses" validate:"omitempty,max=100,dive,max=2000"`
}

// ResponseCreateResponse returns the minted identifier.
type ResponseCreateResponse struct {
	ResponseID string `json:"responseId"`
}

// AvatarGenerateRequest asks for one round of avatars. Without a responseId
// the round is a preview and nothing is logged.
type AvatarGenerateRequest struct {
	ResponseID string `json:"responseId" validate:"omitempty,max=64"`
	Iterations int    `json:"iterations" validate:"gte=0,lte=100"`
	Size       int    `json:"size" validate:"gte=0,lte=64"`
	Prompt     string `json:"prompt" validate:"max=4000"`
}

// ResponseOptimizeRequest submits the ratings of a round.
type ResponseOptimizeRequest struct {
	ResponseID string          `json:"responseId" validate:"required,max=64"`
	Ratings    json.RawMessage `json:"ratings" validate:"required"`
}

// ResponseInitializeRequest starts the final round.
type ResponseInitializeRequest struct {
	ResponseID string `json:"responseId" validate:"required,max=64"`
	Prompt     string `json:"prompt" validate:"max=4000"`
}

// ResponseIDRequest identifies a single response.
type ResponseIDRequest struct {
	ResponseID string `json:"responseId" validate:"required,max=64"`
}

// ResponseLogPromptRequest appends a prompt to a response log directly.
type ResponseLogPromptRequest struct {
	ResponseID string `json:"responseId" validate:"required,max=64"`
	Prompt     string `json:"prompt" validate:"required,max=4000"`
}

// ResponseLogImageRequest appends a base64 image to a response log directly.
type ResponseLogImageRequest struct {
	ResponseID string `json:"responseId" validate:"required,max=64"`
	Buffer     string `json:"buffer" validate:"required,base64"`
}

// ResponseDeleteManyRequest removes every response whose field matches pattern.
type ResponseDeleteManyRequest struct {
	Key   string `json:"key" validate:"required,oneof=_id responseId surveyId activeField"`
	Regex string `json:"regex" validate:"required"`
}

// ResponseDeleteManyResponse reports how many responses were removed.
type ResponseDeleteManyResponse struct {
	Deleted int64 `json:"deleted"`
}

// ResponseDetail is the read model of a response without image bytes.
type ResponseDetail struct {
	ID              string                 `json:"_id"`
	ResponseID      string                 `json:"responseId"`
	SurveyID        string                 `json:"surveyId"`
	CreatedAt       time.Time              `json:"createdAt"`
	State           string                 `json:"state"`
	ActiveField     string                 `json:"activeField,omitempty"`
	Scores          map[string]interface{} `json:"scores,omitempty"`
	FilterResponses []string               `json:"filterResponses"`
	PromptStrings   []string               `json:"promptStrings"`
	ImageCount      int                    `json:"imageCount"`
	Ratings         []json.RawMessage      `json:"ratings"`
}
