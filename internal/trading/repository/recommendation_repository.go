package repository

import (
	"context"
	"errors"
	"time"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/dto"

	"gorm.io/gorm"
)

// RecommendationRepository defines the interface for persisted
// recommendations. The read path only ever sees non-expired rows.
type RecommendationRepository interface {
	Create(ctx context.Context, rec *entity.Recommendation) error
	FindActive(ctx context.Context, portfolioID uint) ([]entity.Recommendation, error)
	FindActiveByID(ctx context.Context, id string) (*entity.Recommendation, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// NewRecommendationRepository creates a new GORM-based recommendation repository.
func NewRecommendationRepository(db *gorm.DB) RecommendationRepository {
	return &recommendationRepository{db: db}
}

type recommendationRepository struct {
	db *gorm.DB
}

// Create persists a new recommendation.
func (r *recommendationRepository) Create(ctx context.Context, rec *entity.Recommendation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindActive retrieves all non-expired recommendations for a portfolio,
// newest first.
func (r *recommendationRepository) FindActive(ctx context.Context, portfolioID uint) ([]entity.Recommendation, error) {
	var recs []entity.Recommendation
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND expires_at > ?", portfolioID, time.Now()).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// FindActiveByID retrieves a single non-expired recommendation.
func (r *recommendationRepository) FindActiveByID(ctx context.Context, id string) (*entity.Recommendation, error) {
	var rec entity.Recommendation
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, time.Now()).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dto.ErrRecommendationNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteExpired removes recommendations that expired before the given time.
func (r *recommendationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", before).
		Delete(&entity.Recommendation{})
	return res.RowsAffected, res.Error
}
