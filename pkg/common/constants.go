package common

const (
	// Trade sides.
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"

	// Verdict actions.
	VerdictActionBuy  = "BUY"
	VerdictActionSell = "SELL"
	VerdictActionHold = "HOLD"

	// Execution methods recorded on trade rows.
	ExecutionMethodManual    = "manual"
	ExecutionMethodAuto      = "auto"
	ExecutionMethodScheduled = "scheduled"

	// Risk validation modes.
	RiskModeAutomated = "automated"
	RiskModeManual    = "manual"

	// Scheduled pipeline stages, used as single-flight keys and log tags.
	StageDiscovery       = "discovery"
	StageRecommendations = "recommendations"
	StagePositionMonitor = "position-monitor"

	// Redis cache key prefix for market snapshots.
	CacheKeyMarketSnapshot = "market.snapshot."
)
