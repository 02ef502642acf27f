package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/dto"

	"gorm.io/gorm"
)

// PortfolioRepository defines the interface for portfolio data operations.
type PortfolioRepository interface {
	Create(ctx context.Context, portfolio *entity.Portfolio) error
	FindByID(ctx context.Context, id uint) (*entity.Portfolio, error)
	FindAll(ctx context.Context) ([]entity.Portfolio, error)
	// ApplyTrade atomically persists the outcome of one executed trade: the
	// new cash balance, the upserted or removed holding, and the appended
	// trade row. Either all three land or none do.
	ApplyTrade(ctx context.Context, portfolio *entity.Portfolio, holding *entity.Holding, removeHolding bool, trade *entity.Trade) error
}

// NewPortfolioRepository creates a new GORM-based portfolio repository.
func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

type portfolioRepository struct {
	db *gorm.DB
}

// Create creates a new portfolio.
func (r *portfolioRepository) Create(ctx context.Context, portfolio *entity.Portfolio) error {
	return r.db.WithContext(ctx).Create(portfolio).Error
}

// FindByID retrieves a portfolio with its holdings.
func (r *portfolioRepository) FindByID(ctx context.Context, id uint) (*entity.Portfolio, error) {
	var portfolio entity.Portfolio
	if err := r.db.WithContext(ctx).Preload("Holdings").First(&portfolio, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dto.ErrPortfolioNotFound
		}
		return nil, err
	}
	return &portfolio, nil
}

// FindAll retrieves all portfolios with their holdings.
func (r *portfolioRepository) FindAll(ctx context.Context) ([]entity.Portfolio, error) {
	var portfolios []entity.Portfolio
	if err := r.db.WithContext(ctx).Preload("Holdings").Find(&portfolios).Error; err != nil {
		return nil, err
	}
	return portfolios, nil
}

// ApplyTrade persists a trade outcome in a single transaction.
func (r *portfolioRepository) ApplyTrade(ctx context.Context, portfolio *entity.Portfolio, holding *entity.Holding, removeHolding bool, trade *entity.Trade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Portfolio{}).Where("id = ?", portfolio.ID).Update("cash", portfolio.Cash).Error; err != nil {
			return fmt.Errorf("failed to update portfolio cash: %w", err)
		}

		if holding != nil {
			if removeHolding {
				if err := tx.Delete(&entity.Holding{}, holding.ID).Error; err != nil {
					return fmt.Errorf("failed to remove holding: %w", err)
				}
			} else if err := tx.Save(holding).Error; err != nil {
				return fmt.Errorf("failed to upsert holding: %w", err)
			}
		}

		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to append trade: %w", err)
		}
		return nil
	})
}
