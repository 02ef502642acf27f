package dto

import (
	"fmt"

	"golang-paper-trader/pkg/common"
)

// Verdict is the reasoning service's structured trade opinion. It is
// untrusted input and must pass Validate before any field is used.
type Verdict struct {
	Action               string    `json:"action"`
	Confidence           float64   `json:"confidence"`
	EntryPrice           float64   `json:"entry_price"`
	StopLoss             float64   `json:"stop_loss"`
	TakeProfitLevels     []float64 `json:"take_profit_levels"`
	PositionSizeFraction float64   `json:"position_size_fraction"`
	RiskLevel            string    `json:"risk_level"`
	Reasoning            string    `json:"reasoning"`
	Sources              []string  `json:"sources"`
}

// Validate bounds-checks the verdict fields. BUY verdicts must carry a
// positive entry price; prices and the position size fraction must be sane
// regardless of action.
func (v *Verdict) Validate() error {
	switch v.Action {
	case common.VerdictActionBuy, common.VerdictActionSell, common.VerdictActionHold:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrVerdictInvalid, v.Action)
	}
	if v.Confidence < 0 || v.Confidence > 100 {
		return fmt.Errorf("%w: confidence %.2f out of [0,100]", ErrVerdictInvalid, v.Confidence)
	}
	if v.Action == common.VerdictActionBuy && v.EntryPrice <= 0 {
		return fmt.Errorf("%w: BUY verdict without positive entry price", ErrVerdictInvalid)
	}
	if v.EntryPrice < 0 || v.StopLoss < 0 {
		return fmt.Errorf("%w: negative price field", ErrVerdictInvalid)
	}
	for _, tp := range v.TakeProfitLevels {
		if tp < 0 {
			return fmt.Errorf("%w: negative take-profit level", ErrVerdictInvalid)
		}
	}
	if v.PositionSizeFraction < 0 || v.PositionSizeFraction > 1 {
		return fmt.Errorf("%w: position size fraction %.4f out of [0,1]", ErrVerdictInvalid, v.PositionSizeFraction)
	}
	return nil
}

// ContextBundle is the per-asset context assembled for the reasoning service.
type ContextBundle struct {
	Symbol     string       `json:"symbol"`
	Direction  string       `json:"direction"`
	Reason     string       `json:"reason"`
	Urgency    string       `json:"urgency"`
	Snapshot   Snapshot     `json:"snapshot"`
	Holding    *HoldingInfo `json:"holding,omitempty"`
	CashUSD    float64      `json:"cash_usd"`
	TotalValue float64      `json:"total_value"`
}

// HoldingInfo summarizes an open position for the context bundle.
type HoldingInfo struct {
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	PercentGain  float64 `json:"percent_gain"`
}
