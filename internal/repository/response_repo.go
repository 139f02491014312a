package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/avatair-api/internal/models"
)

// ResponseQuery selects a single response record.
type ResponseQuery struct {
	ID       string
	SurveyID string
}

// ArtifactStore persists one record per response along with its append-only
// prompt, image and rating logs. Each append call adds exactly one element
// and must be atomic with respect to concurrent appends on the same record.
type ArtifactStore interface {
	CreateResponse(ctx context.Context, surveyID string, partial models.Response) (models.Response, error)
	Get(ctx context.Context, query ResponseQuery) (models.Response, error)
	Exists(ctx context.Context, id string) (bool, error)
	AppendPrompt(ctx context.Context, id, text string) error
	AppendImage(ctx context.Context, id string, data []byte) error
	AppendRating(ctx context.Context, id string, rating json.RawMessage) error
	DeleteOne(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, matcher Matcher) (int64, error)
	DeleteBySurvey(ctx context.Context, surveyID string) (int64, error)
	ListBySurvey(ctx context.Context, surveyID string) ([]models.Response, error)
}

type responseRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewResponseRepository builds the SQL artifact store. Log entries live in
// child tables so that an append is a single INSERT ordered by its sequence.
func NewResponseRepository(db *gorm.DB) ArtifactStore {
	return &responseRepository{db: db, now: time.Now}
}

// ArtifactModels lists the tables the SQL artifact store needs migrated.
func ArtifactModels() []interface{} {
	return []interface{}{&models.Response{}, &models.ResponsePrompt{}, &models.ResponseImage{}, &models.ResponseRating{}}
}

func (r *responseRepository) CreateResponse(ctx context.Context, surveyID string, partial models.Response) (models.Response, error) {
	record := partial
	record.SurveyID = surveyID
	if record.ID == "" {
		record.ID = record.ResponseID
	}
	if record.ResponseID == "" {
		record.ResponseID = record.ID
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	record.PromptStrings = []string{}
	record.GeneratedImageBatch = nil
	record.Ratings = []json.RawMessage{}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.Response{}, wrapStorage("create response", err)
	}

	return record, nil
}

func (r *responseRepository) Get(ctx context.Context, query ResponseQuery) (models.Response, error) {
	q := r.db.WithContext(ctx).Model(&models.Response{}).Where("id = ?", query.ID)
	if query.SurveyID != "" {
		q = q.Where("survey_id = ?", query.SurveyID)
	}

	var record models.Response
	if err := q.First(&record).Error; err != nil {
		return models.Response{}, wrapStorage("get response", err)
	}

	responses := []models.Response{record}
	if err := r.loadLogs(ctx, responses); err != nil {
		return models.Response{}, err
	}

	return responses[0], nil
}

func (r *responseRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Response{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, wrapStorage("check response", err)
	}
	return count > 0, nil
}

func (r *responseRepository) AppendPrompt(ctx context.Context, id, text string) error {
	return r.appendRow(ctx, "append prompt", id, &models.ResponsePrompt{ResponseID: id, Text: text, CreatedAt: r.now()})
}

func (r *responseRepository) AppendImage(ctx context.Context, id string, data []byte) error {
	return r.appendRow(ctx, "append image", id, &models.ResponseImage{ResponseID: id, Data: data, CreatedAt: r.now()})
}

func (r *responseRepository) AppendRating(ctx context.Context, id string, rating json.RawMessage) error {
	return r.appendRow(ctx, "append rating", id, &models.ResponseRating{ResponseID: id, Payload: datatypes.JSON(rating), CreatedAt: r.now()})
}

func (r *responseRepository) appendRow(ctx context.Context, op, id string, row interface{}) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Response{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Omit(clause.Associations).Create(row).Error
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return wrapStorage(op, err)
}

func (r *responseRepository) DeleteOne(ctx context.Context, id string) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteResponses(tx, []string{id})
		deleted = n
		return err
	})
	if err != nil {
		return wrapStorage("delete response", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *responseRepository) DeleteMany(ctx context.Context, matcher Matcher) (int64, error) {
	type candidate struct {
		ID    string
		Value string
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []candidate
		if err := tx.Model(&models.Response{}).
			Select("id, " + matcher.Column + " AS value").
			Scan(&candidates).Error; err != nil {
			return err
		}

		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if matcher.MatchString(c.Value) {
				ids = append(ids, c.ID)
			}
		}

		n, err := deleteResponses(tx, ids)
		deleted = n
		return err
	})
	if err != nil {
		return 0, wrapStorage("delete responses", err)
	}

	return deleted, nil
}

func (r *responseRepository) DeleteBySurvey(ctx context.Context, surveyID string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Response{}).Where("survey_id = ?", surveyID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		n, err := deleteResponses(tx, ids)
		deleted = n
		return err
	})
	if err != nil {
		return 0, wrapStorage("delete survey responses", err)
	}

	return deleted, nil
}

func (r *responseRepository) ListBySurvey(ctx context.Context, surveyID string) ([]models.Response, error) {
	var responses []models.Response
	if err := r.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&responses).Error; err != nil {
		return nil, wrapStorage("list responses", err)
	}

	if err := r.loadLogs(ctx, responses); err != nil {
		return nil, err
	}

	return responses, nil
}

// loadLogs fills the prompt, image and rating logs of the given responses in
// append order.
func (r *responseRepository) loadLogs(ctx context.Context, responses []models.Response) error {
	if len(responses) == 0 {
		return nil
	}

	index := make(map[string]int, len(responses))
	ids := make([]string, 0, len(responses))
	for i := range responses {
		index[responses[i].ID] = i
		ids = append(ids, responses[i].ID)
		responses[i].PromptStrings = []string{}
		responses[i].Ratings = []json.RawMessage{}
	}

	db := r.db.WithContext(ctx)

	var prompts []models.ResponsePrompt
	if err := db.Where("response_id IN ?", ids).Order("id ASC").Find(&prompts).Error; err != nil {
		return wrapStorage("load prompts", err)
	}
	for _, p := range prompts {
		i := index[p.ResponseID]
		responses[i].PromptStrings = append(responses[i].PromptStrings, p.Text)
	}

	var images []models.ResponseImage
	if err := db.Where("response_id IN ?", ids).Order("id ASC").Find(&images).Error; err != nil {
		return wrapStorage("load images", err)
	}
	for _, img := range images {
		i := index[img.ResponseID]
		responses[i].GeneratedImageBatch = append(responses[i].GeneratedImageBatch, img.Data)
	}

	var ratings []models.ResponseRating
	if err := db.Where("response_id IN ?", ids).Order("id ASC").Find(&ratings).Error; err != nil {
		return wrapStorage("load ratings", err)
	}
	for _, rating := range ratings {
		i := index[rating.ResponseID]
		responses[i].Ratings = append(responses[i].Ratings, json.RawMessage(rating.Payload))
	}

	return nil
}

func deleteResponses(tx *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	for _, row := range []interface{}{&models.ResponsePrompt{}, &models.ResponseImage{}, &models.ResponseRating{}} {
		if err := tx.Where("response_id IN ?", ids).Delete(row).Error; err != nil {
			return 0, err
		}
	}

	result := tx.Where("id IN ?", ids).Delete(&models.Response{})
	return result.RowsAffected, result.Error
}
