package dto

import "errors"

// Error taxonomy of the trading engine. Data-collection and verdict errors
// are recovered locally by skipping the affected unit of work; only
// execution-layer errors are fatal to an individual trade attempt.
var (
	// ErrProviderUnavailable means the market data provider returned nothing
	// for an entire batch. Partial unavailability drops affected assets
	// without raising this error.
	ErrProviderUnavailable = errors.New("market data provider unavailable")

	// ErrVerdictTimeout means a verdict call for one asset timed out.
	ErrVerdictTimeout = errors.New("verdict generation timed out")

	// ErrVerdictInvalid means the verdict failed boundary validation.
	ErrVerdictInvalid = errors.New("verdict failed validation")

	// ErrRunInProgress means a single-flight stage was triggered while a run
	// was already active. The trigger is rejected, not queued.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrInsufficientFunds means a BUY would drive cash negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientQuantity means a SELL exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrDailyLossHalted means the trading circuit breaker tripped for the
	// current date and automated entries are blocked.
	ErrDailyLossHalted = errors.New("daily loss limit reached, automated trading halted")

	// ErrPortfolioNotFound means the referenced portfolio does not exist.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrRecommendationNotFound means the referenced recommendation does not
	// exist or has expired.
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// ErrRiskRejected means the risk gate rejected the trade. This is an
	// expected outcome, not a failure of the engine.
	ErrRiskRejected = errors.New("trade rejected by risk gate")

	// ErrConfirmationRequired means a manual trade has warnings and must be
	// resubmitted with the confirmation flag.
	ErrConfirmationRequired = errors.New("confirmation required")
)
