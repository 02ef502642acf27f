package dto

// Opportunity direction.
const (
	DirectionEntry = "ENTRY"
	DirectionExit  = "EXIT"
)

// Opportunity reasons.
const (
	ReasonBreakout       = "breakout"
	ReasonDip            = "dip"
	ReasonDiscovery      = "discovery"
	ReasonProfitTarget   = "profit_target"
	ReasonRiskManagement = "risk_management"
	ReasonResistance     = "resistance"
)

// Opportunity urgency levels, ordered low to high.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// UrgencyRank maps an urgency to a sortable rank.
func UrgencyRank(urgency string) int {
	switch urgency {
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// Opportunity is an actionable asset flagged by the classifier. Entries
// reference a discovery candidate; exits reference a current holding and
// carry its unrealized percent gain.
type Opportunity struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Reason    string  `json:"reason"`
	Urgency   string  `json:"urgency"`
	// Magnitude of the condition that triggered the opportunity; used as the
	// secondary sort key after urgency.
	TriggerMagnitude float64 `json:"trigger_magnitude"`

	// Entry fields.
	Candidate *Candidate `json:"candidate,omitempty"`

	// Exit fields.
	HoldingID    uint    `json:"holding_id,omitempty"`
	Quantity     float64 `json:"quantity,omitempty"`
	AveragePrice float64 `json:"average_price,omitempty"`
	CurrentPrice float64 `json:"current_price,omitempty"`
	PercentGain  float64 `json:"percent_gain,omitempty"`
}
