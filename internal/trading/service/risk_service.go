package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
)

// RiskService is the single chokepoint every trade source must pass before
// execution: verdict executions, manual requests, and position-monitor
// forced exits all validate here. Automated mode hard-rejects on the first
// failing rule; manual mode accumulates warnings and only the liquidity
// floor and the funds check can reject outright.
type RiskService interface {
	Validate(ctx context.Context, req *dto.TradeRequest, portfolio *entity.Portfolio, mode string) (*dto.RiskCheckResult, error)
	Breaker() *DailyLossBreaker
	// PortfolioValue computes cash plus holdings at current prices, falling
	// back to cost basis for holdings without a fresh snapshot.
	PortfolioValue(ctx context.Context, portfolio *entity.Portfolio) decimal.Decimal
}

type riskService struct {
	cfg        *config.Config
	log        *logger.Logger
	marketData repository.MarketDataRepository
	tradeRepo  repository.TradeRepository
	breaker    *DailyLossBreaker
}

// NewRiskService creates a new risk gate.
func NewRiskService(cfg *config.Config, log *logger.Logger, marketData repository.MarketDataRepository, tradeRepo repository.TradeRepository, breaker *DailyLossBreaker) RiskService {
	return &riskService{
		cfg:        cfg,
		log:        log,
		marketData: marketData,
		tradeRepo:  tradeRepo,
		breaker:    breaker,
	}
}

func (s *riskService) Breaker() *DailyLossBreaker {
	return s.breaker
}

// check is one rule outcome inside a validation pass.
type check struct {
	hard    bool
	message string
}

// Validate runs every rule against the proposed trade. First hard reject
// wins; otherwise all warnings accumulate.
func (s *riskService) Validate(ctx context.Context, req *dto.TradeRequest, portfolio *entity.Portfolio, mode string) (*dto.RiskCheckResult, error) {
	automated := mode == common.RiskModeAutomated
	limits := s.cfg.Risk

	totalValue := s.PortfolioValue(ctx, portfolio)
	// Pre-trade value anchors the daily-loss baseline before the trade
	// mutates the portfolio.
	s.breaker.Anchor(time.Now(), totalValue)

	proposedValue := decimal.NewFromFloat(req.Quantity).Mul(decimal.NewFromFloat(req.Price))
	positionFraction := 0.0
	if totalValue.IsPositive() {
		positionFraction, _ = proposedValue.Div(totalValue).Float64()
	}

	maxRisk := limits.MaxAutoPositionFraction
	if !automated {
		maxRisk = limits.MaxManualPositionFraction
	}
	result := &dto.RiskCheckResult{
		Allowed:     true,
		CurrentRisk: positionFraction,
		MaxRisk:     maxRisk,
	}

	var checks []check

	// Minimum liquidity: hard in both modes.
	snapshot, err := s.marketData.GetSnapshot(ctx, req.Symbol)
	switch {
	case err != nil:
		checks = append(checks, check{hard: true, message: fmt.Sprintf("liquidity for %s cannot be verified", req.Symbol)})
	case snapshot.Volume24h < limits.MinLiquidityVolume24h:
		checks = append(checks, check{hard: true, message: fmt.Sprintf("24h volume %.0f below liquidity floor %.0f", snapshot.Volume24h, limits.MinLiquidityVolume24h)})
	}

	// Insufficient funds: hard in both modes. A conservative precheck; the
	// execution engine re-checks with exact fees under the portfolio lock.
	if req.Side == common.TradeSideBuy && portfolio.Cash.LessThan(proposedValue) {
		checks = append(checks, check{hard: true, message: "insufficient funds for proposed trade"})
	}

	if req.Side == common.TradeSideBuy {
		checks = append(checks, s.entryChecks(req, portfolio, positionFraction, automated)...)
	}

	// Trade cadence: automated only; exits are exempt.
	if automated && !req.Exit {
		if c := s.cadenceCheck(ctx, portfolio.ID); c != nil {
			checks = append(checks, *c)
		}
	}

	// Hard flags are mode-aware at construction: in manual mode only the
	// liquidity floor and the funds check carry one.
	for _, c := range checks {
		if c.hard {
			result.Allowed = false
			result.Reason = c.message
			result.Warnings = nil
			return result, nil
		}
		result.Warnings = append(result.Warnings, c.message)
	}
	return result, nil
}

// entryChecks covers the BUY-side rules: position size, stop-loss presence
// and width, open-position count, and the daily-loss halt.
func (s *riskService) entryChecks(req *dto.TradeRequest, portfolio *entity.Portfolio, positionFraction float64, automated bool) []check {
	limits := s.cfg.Risk
	var checks []check

	if automated {
		if positionFraction > limits.MaxAutoPositionFraction {
			checks = append(checks, check{hard: true, message: fmt.Sprintf("position size %.1f%% exceeds limit %.1f%%", positionFraction*100, limits.MaxAutoPositionFraction*100)})
		}
	} else if positionFraction > limits.MaxManualPositionFraction {
		checks = append(checks, check{message: fmt.Sprintf("position size %.1f%% exceeds advised limit %.1f%%", positionFraction*100, limits.MaxManualPositionFraction*100)})
	}

	if req.StopLoss == nil || *req.StopLoss <= 0 {
		checks = append(checks, check{hard: automated, message: "no stop-loss set"})
	} else if req.Price > 0 {
		distance := (req.Price - *req.StopLoss) / req.Price
		if distance > limits.MaxStopLossDistance {
			checks = append(checks, check{hard: automated, message: fmt.Sprintf("stop-loss %.1f%% below entry exceeds %.1f%%", distance*100, limits.MaxStopLossDistance*100)})
		}
	}

	// Open-position count: exits are risk-reducing and bypass this.
	if !req.Exit && !portfolio.Holds(req.Symbol) && len(portfolio.Holdings) >= limits.MaxOpenPositions {
		checks = append(checks, check{hard: automated, message: fmt.Sprintf("open position count at limit of %d", limits.MaxOpenPositions)})
	}

	if s.breaker.Tripped(time.Now()) {
		checks = append(checks, check{hard: automated, message: dto.ErrDailyLossHalted.Error()})
	}

	return checks
}

// cadenceCheck enforces the minimum interval between automated trades.
func (s *riskService) cadenceCheck(ctx context.Context, portfolioID uint) *check {
	last, err := s.tradeRepo.LastExecutedAt(ctx, portfolioID)
	if err != nil {
		s.log.Warn("Failed to read last trade time", logger.ErrorField(err))
		return nil
	}
	if last == nil {
		return nil
	}
	if since := time.Since(*last); since < s.cfg.Risk.MinTradeInterval {
		return &check{hard: true, message: fmt.Sprintf("last trade %s ago, below minimum interval %s", since.Round(time.Second), s.cfg.Risk.MinTradeInterval)}
	}
	return nil
}

// PortfolioValue computes the portfolio's total value at current prices.
func (s *riskService) PortfolioValue(ctx context.Context, portfolio *entity.Portfolio) decimal.Decimal {
	total := portfolio.Cash
	for i := range portfolio.Holdings {
		h := &portfolio.Holdings[i]
		snapshot, err := s.marketData.GetSnapshot(ctx, h.Symbol)
		if err != nil {
			total = total.Add(h.CostBasis())
			continue
		}
		total = total.Add(h.MarketValue(decimal.NewFromFloat(snapshot.Price)))
	}
	return total
}
