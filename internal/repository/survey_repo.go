package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/avatair-api/internal/models"
)

// SurveyFilter narrows survey lookups.
type SurveyFilter struct {
	ID      string
	OwnerID string
}

// SurveyRepository defines persistence operations for surveys.
type SurveyRepository interface {
	List(ctx context.Context, ownerID string) ([]models.Survey, error)
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	GetByID(ctx context.Context, id string) (models.Survey, error)
	FindOne(ctx context.Context, filter SurveyFilter) (models.Survey, error)
	ExistsAndOpen(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, survey *models.Survey) error
	Update(ctx context.Context, survey *models.Survey) error
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

type surveyRepository struct {
	db *gorm.DB
}

// NewSurveyRepository instantiates a GORM-backed survey repository.
func NewSurveyRepository(db *gorm.DB) SurveyRepository {
	return &surveyRepository{db: db}
}

func (r *surveyRepository) List(ctx context.Context, ownerID string) ([]models.Survey, error) {
	var surveys []models.Survey
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&surveys).Error; err != nil {
		return nil, wrapStorage("list surveys", err)
	}

	return surveys, nil
}

func (r *surveyRepository) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Survey{}).
		Where("user_id = ?", ownerID).
		Pluck("id", &ids).Error; err != nil {
		return nil, wrapStorage("list survey ids", err)
	}

	return ids, nil
}

func (r *surveyRepository) GetByID(ctx context.Context, id string) (models.Survey, error) {
	return r.FindOne(ctx, SurveyFilter{ID: id})
}

func (r *surveyRepository) FindOne(ctx context.Context, filter SurveyFilter) (models.Survey, error) {
	query := r.db.WithContext(ctx).Model(&models.Survey{})
	if filter.ID != "" {
		query = query.Where("id = ?", filter.ID)
	}
	if filter.OwnerID != "" {
		query = query.Where("user_id = ?", filter.OwnerID)
	}

	var survey models.Survey
	if err := query.First(&survey).Error; err != nil {
		return models.Survey{}, wrapStorage("find survey", err)
	}

	return survey, nil
}

func (r *surveyRepository) ExistsAndOpen(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Survey{}).
		Where("id = ? AND activated = ?", id, true).
		Count(&count).Error; err != nil {
		return false, wrapStorage("check survey", err)
	}

	return count > 0, nil
}

func (r *surveyRepository) Create(ctx context.Context, survey *models.Survey) error {
	return wrapStorage("create survey", r.db.WithContext(ctx).Create(survey).Error)
}

func (r *surveyRepository) Update(ctx context.Context, survey *models.Survey) error {
	return wrapStorage("update survey", r.db.WithContext(ctx).Save(survey).Error)
}

func (r *surveyRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Survey{}, "id = ?", id)
	if result.Error != nil {
		return wrapStorage("delete survey", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *surveyRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Survey{}, "user_id = ?", ownerID)
	if result.Error != nil {
		return 0, wrapStorage("delete owner surveys", result.Error)
	}
	return result.RowsAffected, nil
}
