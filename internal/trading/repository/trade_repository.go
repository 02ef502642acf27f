package repository

import (
	"context"
	"errors"
	"time"

	"golang-paper-trader/internal/entity"

	"gorm.io/gorm"
)

// TradeRepository defines the interface for the append-only trade ledger.
type TradeRepository interface {
	FindByPortfolio(ctx context.Context, portfolioID uint, limit int) ([]entity.Trade, error)
	// LastExecutedAt returns the timestamp of the portfolio's most recent
	// trade, or nil if it has never traded. The risk gate's cadence rule
	// reads this.
	LastExecutedAt(ctx context.Context, portfolioID uint) (*time.Time, error)
}

// NewTradeRepository creates a new GORM-based trade repository.
func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{db: db}
}

type tradeRepository struct {
	db *gorm.DB
}

// FindByPortfolio retrieves the most recent trades for a portfolio.
func (r *tradeRepository) FindByPortfolio(ctx context.Context, portfolioID uint, limit int) ([]entity.Trade, error) {
	var trades []entity.Trade
	q := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("executed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// LastExecutedAt returns the most recent execution time for a portfolio.
func (r *tradeRepository) LastExecutedAt(ctx context.Context, portfolioID uint) (*time.Time, error) {
	var trade entity.Trade
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("executed_at DESC").
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade.ExecutedAt, nil
}
