package dto

import "golang-paper-trader/internal/entity"

// CreatePortfolioRequest creates a new simulated portfolio.
type CreatePortfolioRequest struct {
	Name        string  `json:"name"`
	InitialCash float64 `json:"initial_cash"`
}

// Trade decision statuses returned by the manual trade endpoint.
const (
	TradeStatusExecuted             = "executed"
	TradeStatusRejected             = "rejected"
	TradeStatusConfirmationRequired = "confirmation_required"
)

// TradeDecisionResponse is the manual trade endpoint's two-phase response:
// "rejected" carries the reason, "confirmation_required" carries the
// warnings to acknowledge, "executed" carries the ledger row.
type TradeDecisionResponse struct {
	Status    string           `json:"status"`
	RiskCheck *RiskCheckResult `json:"risk_check,omitempty"`
	Trade     *entity.Trade    `json:"trade,omitempty"`
}

// PortfolioResponse is a portfolio with its computed market value.
type PortfolioResponse struct {
	Portfolio  *entity.Portfolio `json:"portfolio"`
	TotalValue float64           `json:"total_value"`
}

// TriggerResponse reports the outcome of a run-now trigger.
type TriggerResponse struct {
	Stage  string      `json:"stage"`
	Result interface{} `json:"result,omitempty"`
}
