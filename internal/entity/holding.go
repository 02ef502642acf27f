package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one open position inside a portfolio. Quantity is always
// positive; the row is deleted when a sell brings it to zero.
type Holding struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	PortfolioID  uint             `gorm:"not null;uniqueIndex:idx_holdings_portfolio_symbol" json:"portfolio_id"`
	Symbol       string           `gorm:"not null;uniqueIndex:idx_holdings_portfolio_symbol" json:"symbol"`
	Quantity     decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"quantity"`
	AveragePrice decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"average_price"`
	StopLoss     *decimal.Decimal `gorm:"type:numeric(24,8)" json:"stop_loss,omitempty"`
	TakeProfit   *decimal.Decimal `gorm:"type:numeric(24,8)" json:"take_profit,omitempty"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

// MarketValue returns quantity × price.
func (h *Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return h.Quantity.Mul(price)
}

// CostBasis returns quantity × average price.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AveragePrice)
}
