package service

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"golang-paper-trader/pkg/utils"
)

// DailyLossBreaker is the trading circuit breaker: it accumulates realized
// losses per wall-clock date and trips once they reach a configured fraction
// of the start-of-day portfolio value. It never resets mid-day; the state is
// cleared lazily on the first touch of a new date. Fed only by the execution
// engine, read by the risk gate.
type DailyLossBreaker struct {
	mu sync.Mutex

	maxLossFraction decimal.Decimal

	dateKey        string
	startOfDay     decimal.Decimal
	cumulativeLoss decimal.Decimal
	tripped        bool
}

// NewDailyLossBreaker creates a breaker with the given daily loss limit,
// expressed as a fraction of start-of-day portfolio value.
func NewDailyLossBreaker(maxLossFraction float64) *DailyLossBreaker {
	return &DailyLossBreaker{
		maxLossFraction: decimal.NewFromFloat(maxLossFraction),
	}
}

// Anchor records the portfolio value for the start-of-day baseline. The
// risk gate calls this with the pre-trade value on every validation, so the
// baseline is set before the day's first closeout mutates the portfolio.
// Only the first positive value of a date sticks.
func (b *DailyLossBreaker) Anchor(now time.Time, portfolioValue decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDate(now, portfolioValue)
}

// RecordRealizedPnL feeds one closeout's realized P&L into the breaker.
// portfolioValue is a fallback anchor for closeouts that never passed the
// risk gate. It returns true if this call tripped the breaker.
func (b *DailyLossBreaker) RecordRealizedPnL(now time.Time, pnl, portfolioValue decimal.Decimal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDate(now, portfolioValue)

	if pnl.IsNegative() {
		b.cumulativeLoss = b.cumulativeLoss.Add(pnl.Neg())
	}

	if b.tripped || b.startOfDay.IsZero() {
		return false
	}

	limit := b.startOfDay.Mul(b.maxLossFraction)
	if b.cumulativeLoss.GreaterThanOrEqual(limit) {
		b.tripped = true
		return true
	}
	return false
}

// Tripped reports whether automated entries are halted for the date of now.
func (b *DailyLossBreaker) Tripped(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDate(now, decimal.Zero)
	return b.tripped
}

// LossFraction returns the day's cumulative realized loss as a fraction of
// the start-of-day portfolio value, or zero before the first trade of the day.
func (b *DailyLossBreaker) LossFraction(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDate(now, decimal.Zero)
	if b.startOfDay.IsZero() {
		return 0
	}
	f, _ := b.cumulativeLoss.Div(b.startOfDay).Float64()
	return f
}

// rollDate clears the state when the wall-clock date changes and anchors the
// start-of-day value on first touch. Caller must hold the lock.
func (b *DailyLossBreaker) rollDate(now time.Time, portfolioValue decimal.Decimal) {
	key := utils.DateKey(now)
	if key != b.dateKey {
		b.dateKey = key
		b.startOfDay = decimal.Zero
		b.cumulativeLoss = decimal.Zero
		b.tripped = false
	}
	if b.startOfDay.IsZero() && portfolioValue.IsPositive() {
		b.startOfDay = portfolioValue
	}
}
