package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one immutable row of the trade ledger. Rows are append-only and
// never updated or deleted.
type Trade struct {
	ID               string           `gorm:"primaryKey" json:"id"`
	PortfolioID      uint             `gorm:"not null;index" json:"portfolio_id"`
	Symbol           string           `gorm:"not null;index" json:"symbol"`
	Side             string           `gorm:"not null" json:"side"`
	Quantity         decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"quantity"`
	Price            decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"price"`
	Fee              decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"fee"`
	Slippage         decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"slippage"`
	TotalCost        decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"total_cost"`
	RealizedPnL      *decimal.Decimal `gorm:"column:realized_pnl;type:numeric(24,8)" json:"realized_pnl,omitempty"`
	Reasoning        string           `json:"reasoning"`
	RecommendationID *string          `gorm:"index" json:"recommendation_id,omitempty"`
	StopLoss         *decimal.Decimal `gorm:"type:numeric(24,8)" json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal `gorm:"type:numeric(24,8)" json:"take_profit,omitempty"`
	ExecutionMethod  string           `gorm:"not null" json:"execution_method"`
	InitiatedBy      string           `gorm:"not null" json:"initiated_by"`
	ExecutedAt       time.Time        `gorm:"not null;index" json:"executed_at"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}
