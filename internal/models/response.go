package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Score fields a response may activate. At most one is populated.
const (
	ScoreFieldSlider = "sliderScore"
	ScoreFieldStar   = "starScore"
	ScoreFieldSelect = "selectScore"
	ScoreFieldSwipe  = "swipeScore"
)

// ResponseIDPrefix tags every generated response identifier.
const ResponseIDPrefix = "responseid"

// Response is one participant session against a survey. The prompt, image
// and rating logs are append-only and live in their own tables; they are
// filled in by the artifact store when a record is read.
type Response struct {
	ID              string                       `gorm:"primaryKey;size:64" json:"_id"`
	SurveyID        string                       `gorm:"size:64;not null;index" json:"surveyId"`
	ResponseID      string                       `gorm:"size:64;not null;uniqueIndex" json:"responseId"`
	CreatedAt       time.Time                    `json:"createdAt"`
	ActiveField     string                       `gorm:"size:32" json:"activeField,omitempty"`
	SliderScore     datatypes.JSONMap            `json:"sliderScore,omitempty"`
	StarScore       datatypes.JSONMap            `json:"starScore,omitempty"`
	SelectScore     datatypes.JSONMap            `json:"selectScore,omitempty"`
	SwipeScore      datatypes.JSONMap            `json:"swipeScore,omitempty"`
	FilterResponses datatypes.JSONType[[]string] `json:"filterResponses"`

	PromptStrings       []string          `gorm:"-" json:"promptStrings"`
	GeneratedImageBatch [][]byte          `gorm:"-" json:"generatedImageBatch,omitempty"`
	Ratings             []json.RawMessage `gorm:"-" json:"ratings"`
}

// ResponsePrompt is one entry of a response's prompt log.
type ResponsePrompt struct {
	ID         uint      `gorm:"primaryKey"`
	ResponseID string    `gorm:"size:64;not null;index"`
	Text       string    `gorm:"type:text"`
	CreatedAt  time.Time
	Response   Response `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// ResponseImage is one entry of a response's image log.
type ResponseImage struct {
	ID         uint      `gorm:"primaryKey"`
	ResponseID string    `gorm:"size:64;not null;index"`
	Data       []byte
	CreatedAt  time.Time
	Response   Response `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// ResponseRating is one rating payload submitted for a round.
type ResponseRating struct {
	ID         uint           `gorm:"primaryKey"`
	ResponseID string         `gorm:"size:64;not null;index"`
	Payload    datatypes.JSON `gorm:"type:json"`
	CreatedAt  time.Time
	Response   Response `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// ScoreFields lists the mutually exclusive scoring maps.
func ScoreFields() []string {
	return []string{ScoreFieldSlider, ScoreFieldStar, ScoreFieldSelect, ScoreFieldSwipe}
}

func (r Response) scoreMaps() map[string]datatypes.JSONMap {
	return map[string]datatypes.JSONMap{
		ScoreFieldSlider: r.SliderScore,
		ScoreFieldStar:   r.StarScore,
		ScoreFieldSelect: r.SelectScore,
		ScoreFieldSwipe:  r.SwipeScore,
	}
}

// ValidateScores enforces that at most one scoring map is populated and that
// it agrees with ActiveField when both are set.
func (r Response) ValidateScores() error {
	populated := ""
	for _, field := range ScoreFields() {
		if len(r.scoreMaps()[field]) == 0 {
			continue
		}
		if populated != "" {
			return fmt.Errorf("only one score map may be populated, got %s and %s", populated, field)
		}
		populated = field
	}

	if r.ActiveField != "" {
		if _, ok := r.scoreMaps()[r.ActiveField]; !ok {
			return fmt.Errorf("unknown active field %q", r.ActiveField)
		}
		if populated != "" && populated != r.ActiveField {
			return fmt.Errorf("active field %s does not match populated %s", r.ActiveField, populated)
		}
	}

	return nil
}

// WithoutImages returns a copy of the response with the image log removed.
func (r Response) WithoutImages() Response {
	clone := r
	clone.GeneratedImageBatch = nil
	return clone
}
