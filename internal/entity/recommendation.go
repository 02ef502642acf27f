package entity

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Recommendation is a persisted, actionable BUY/SELL verdict. HOLD verdicts
// are never stored. Rows past ExpiresAt are invisible to the read path.
type Recommendation struct {
	ID                   string          `gorm:"primaryKey" json:"id"`
	PortfolioID          uint            `gorm:"not null;index" json:"portfolio_id"`
	Symbol               string          `gorm:"not null;index" json:"symbol"`
	Direction            string          `gorm:"not null" json:"direction"`
	Action               string          `gorm:"not null" json:"action"`
	Confidence           float64         `gorm:"not null" json:"confidence"`
	EntryPrice           decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"entry_price"`
	StopLoss             decimal.Decimal `gorm:"type:numeric(24,8)" json:"stop_loss"`
	PositionSizeFraction float64         `json:"position_size_fraction"`
	RiskLevel            string          `json:"risk_level"`
	Reasoning            string          `json:"reasoning"`
	Sources              pq.StringArray  `gorm:"type:text[]" json:"sources,omitempty"`
	Verdict              datatypes.JSON  `gorm:"type:jsonb" json:"verdict"`
	ExpiresAt            time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}
