package dto

// TradeRequest is a proposed trade heading for the risk gate and, if
// approved, the execution engine.
type TradeRequest struct {
	PortfolioID      uint     `json:"portfolio_id"`
	Symbol           string   `json:"symbol"`
	Side             string   `json:"side"`
	Quantity         float64  `json:"quantity"`
	Price            float64  `json:"price"`
	StopLoss         *float64 `json:"stop_loss,omitempty"`
	TakeProfit       *float64 `json:"take_profit,omitempty"`
	Reasoning        string   `json:"reasoning"`
	RecommendationID *string  `json:"recommendation_id,omitempty"`
	ExecutionMethod  string   `json:"execution_method"`
	InitiatedBy      string   `json:"initiated_by"`

	// ConfirmWarnings acknowledges previously returned warnings in the
	// two-phase manual flow.
	ConfirmWarnings bool `json:"confirm_warnings"`

	// Exit marks risk-reducing closeouts (sells of an open position). Exits
	// bypass the position-count and cadence checks.
	Exit bool `json:"-"`

	// TrailStopToBreakeven moves the remaining position's stop-loss to the
	// average price after a partial take-profit sell.
	TrailStopToBreakeven bool `json:"-"`
}

// RiskCheckResult is the outcome of one risk gate validation. It is
// transient and recomputed on every call, never persisted.
type RiskCheckResult struct {
	Allowed     bool     `json:"allowed"`
	Reason      string   `json:"reason,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	CurrentRisk float64  `json:"current_risk"`
	MaxRisk     float64  `json:"max_risk"`
}

// GenerateResult summarizes one recommendation orchestration run.
// TotalAnalyzed = Accepted + AIRejected always holds.
type GenerateResult struct {
	TotalOpportunities int      `json:"total_opportunities"`
	TotalAnalyzed      int      `json:"total_analyzed"`
	Accepted           int      `json:"accepted"`
	AIRejected         int      `json:"ai_rejected"`
	Failed             int      `json:"failed"`
	RecommendationIDs  []string `json:"recommendation_ids"`
}

// ForcedExit describes one stop-loss or take-profit closeout performed by
// the position monitor.
type ForcedExit struct {
	Symbol       string  `json:"symbol"`
	Reason       string  `json:"reason"`
	Quantity     float64 `json:"quantity"`
	TriggerPrice float64 `json:"trigger_price"`
	TradeID      string  `json:"trade_id"`
	RealizedPnL  float64 `json:"realized_pnl"`
}
