package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the single mutable entity of the trading engine. Cash and
// holdings are written only by the execution engine, under the per-portfolio
// lock.
type Portfolio struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null;uniqueIndex" json:"name"`
	Cash      decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"cash"`
	Holdings  []Holding       `gorm:"foreignKey:PortfolioID" json:"holdings"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// Holding returns the holding for symbol, or nil if the portfolio does not
// hold it.
func (p *Portfolio) Holding(symbol string) *Holding {
	for i := range p.Holdings {
		if p.Holdings[i].Symbol == symbol {
			return &p.Holdings[i]
		}
	}
	return nil
}

// Holds reports whether the portfolio currently holds symbol.
func (p *Portfolio) Holds(symbol string) bool {
	return p.Holding(symbol) != nil
}
