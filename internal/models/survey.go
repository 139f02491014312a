package models

import (
	"time"

	"gorm.io/datatypes"
)

// Default survey parameters applied when a survey is created without them.
const (
	DefaultMaxIterations  = 4
	DefaultAvatarsPerPage = 4
)

// Survey is the owner-authored definition of a generation session.
type Survey struct {
	ID                  string                                   `gorm:"primaryKey;size:64" json:"_id"`
	UserID              string                                   `gorm:"size:64;not null;index" json:"userId"`
	Activated           bool                                     `gorm:"not null;default:false" json:"activated"`
	Title               string                                   `gorm:"size:255;not null" json:"title"`
	Description         string                                   `gorm:"type:text" json:"description"`
	FilterQuestions     string                                   `gorm:"type:text" json:"filterQuestions,omitempty"`
	Parameters          datatypes.JSONType[SurveyParameters]     `json:"parameters"`
	PreVariables        datatypes.JSONType[PreVariables]         `json:"preVariables"`
	GenerativeVariables datatypes.JSONType[[]GenerativeVariable] `json:"generativeVariables"`
	RatingScales        datatypes.JSONType[[]RatingScale]        `json:"ratingScales"`
	WelcomePage         datatypes.JSONType[TextPage]             `json:"welcomePage"`
	EndPage             datatypes.JSONType[TextPage]             `json:"endPage"`
	Prompt              string                                   `gorm:"type:text" json:"prompt"`
	CreatedAt           time.Time                                `json:"createdAt"`
	UpdatedAt           time.Time                                `json:"updatedAt"`
}

// SurveyParameters carries the iteration count, page size and feature toggles.
type SurveyParameters struct {
	MaxIterations   int  `json:"maxIterations"`
	AvatarsPerPage  int  `json:"avatarsPerPage"`
	Abort           bool `json:"abort"`
	ExplainDecision bool `json:"explainDecision"`
	ExplainRequired bool `json:"explainRequired"`
	GenerateAvatar  bool `json:"generateAvatar"`
	Webcam          bool `json:"webcam"`
	ImageUpload     bool `json:"imageUpload"`
	WelcomePage     bool `json:"welcomePage"`
	EndPage         bool `json:"endPage"`
	FinalSelection  bool `json:"finalSelection"`
}

// PreVariables are the categorical constraints forwarded to the generator.
type PreVariables struct {
	Gender        []string  `json:"gender"`
	EyeColor      []string  `json:"eyecolor"`
	EyeSize       []string  `json:"eyesize"`
	HairColour    []string  `json:"haircolour"`
	HairLength    []string  `json:"hairlength"`
	HairStructure []string  `json:"hairstructure"`
	SkinColour    []string  `json:"skincolour"`
	Nose          []string  `json:"nose"`
	Mouth         []string  `json:"mouth"`
	EarSize       []string  `json:"earsize"`
	FaceWidth     []string  `json:"facewidth"`
	FacialHair    []string  `json:"facialhair"`
	Glasses       []string  `json:"glasses"`
	Stature       []string  `json:"stature"`
	AgeRange      []float64 `json:"agerange"`
}

// GenerativeVariable names a variable the generator may vary within a range.
type GenerativeVariable struct {
	Name  string `json:"name"`
	Range string `json:"range"`
}

// RatingScale describes one scale participants rate avatars on.
type RatingScale struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	LabelGood string `json:"labelGood"`
	LabelBad  string `json:"labelBad"`
}

// TextPage is a title/content pair shown before or after a session.
type TextPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DefaultSurveyParameters mirrors the defaults applied to new surveys.
func DefaultSurveyParameters() SurveyParameters {
	return SurveyParameters{
		MaxIterations:  DefaultMaxIterations,
		AvatarsPerPage: DefaultAvatarsPerPage,
		GenerateAvatar: true,
	}
}

// DefaultRatingScales returns the single slider scale new surveys start with.
func DefaultRatingScales() []RatingScale {
	return []RatingScale{{Name: "Standard", Type: "Slider", LabelGood: "opt1good", LabelBad: "opt1bad"}}
}

// ImageThreshold is the number of round images a response can hold before
// further images count as terminal artifacts.
func (s Survey) ImageThreshold() int {
	params := s.Parameters.Data()
	if params.MaxIterations <= 0 || params.AvatarsPerPage <= 0 {
		return 0
	}
	return params.MaxIterations * params.AvatarsPerPage
}

// IsOpen reports whether unauthenticated respondents may participate.
func (s Survey) IsOpen() bool {
	return s.Activated
}
