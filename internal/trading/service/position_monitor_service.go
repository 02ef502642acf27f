package service

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/telegram"
)

// Monitor exit reasons recorded on forced closeouts.
const (
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
)

// PositionMonitorService sweeps open positions on a short timer and closes
// the ones whose stop-loss or take-profit crossed, routing each through the
// risk gate and the execution engine as a forced exit.
type PositionMonitorService interface {
	Sweep(ctx context.Context) ([]dto.ForcedExit, error)
}

type positionMonitorService struct {
	cfg           *config.Config
	log           *logger.Logger
	portfolioRepo repository.PortfolioRepository
	marketData    repository.MarketDataRepository
	riskSvc       RiskService
	executionSvc  ExecutionService
	notifier      telegram.Notifier
	inFlight      *semaphore.Weighted
}

// NewPositionMonitorService creates a new position monitor.
func NewPositionMonitorService(
	cfg *config.Config,
	log *logger.Logger,
	portfolioRepo repository.PortfolioRepository,
	marketData repository.MarketDataRepository,
	riskSvc RiskService,
	executionSvc ExecutionService,
	notifier telegram.Notifier,
) PositionMonitorService {
	return &positionMonitorService{
		cfg:           cfg,
		log:           log,
		portfolioRepo: portfolioRepo,
		marketData:    marketData,
		riskSvc:       riskSvc,
		executionSvc:  executionSvc,
		notifier:      notifier,
		inFlight:      semaphore.NewWeighted(1),
	}
}

// Sweep evaluates every open holding across all portfolios. A sweep that
// finds no qualifying positions performs no mutation.
func (s *positionMonitorService) Sweep(ctx context.Context) ([]dto.ForcedExit, error) {
	if !s.inFlight.TryAcquire(1) {
		return nil, dto.ErrRunInProgress
	}
	defer s.inFlight.Release(1)

	portfolios, err := s.portfolioRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var exits []dto.ForcedExit
	for i := range portfolios {
		portfolio := &portfolios[i]
		for j := range portfolio.Holdings {
			holding := &portfolio.Holdings[j]
			exit, ok := s.evaluateHolding(ctx, portfolio, holding)
			if ok {
				exits = append(exits, *exit)
			}
		}
	}

	if len(exits) > 0 {
		s.log.Info("Position monitor sweep closed positions", logger.IntField("forced_exits", len(exits)))
	}
	return exits, nil
}

// evaluateHolding checks one holding's stop-loss/take-profit conditions and
// performs the forced exit when one crossed.
func (s *positionMonitorService) evaluateHolding(ctx context.Context, portfolio *entity.Portfolio, holding *entity.Holding) (*dto.ForcedExit, bool) {
	if holding.StopLoss == nil && holding.TakeProfit == nil {
		return nil, false
	}

	snapshot, err := s.marketData.GetSnapshot(ctx, holding.Symbol)
	if err != nil {
		s.log.Warn("Skipping holding in monitor sweep",
			logger.StringField("symbol", holding.Symbol),
			logger.ErrorField(err),
		)
		return nil, false
	}
	price := decimal.NewFromFloat(snapshot.Price)

	var reason string
	quantity := holding.Quantity
	trailStop := false
	switch {
	case holding.StopLoss != nil && price.LessThanOrEqual(*holding.StopLoss):
		reason = ExitReasonStopLoss
	case holding.TakeProfit != nil && price.GreaterThanOrEqual(*holding.TakeProfit):
		reason = ExitReasonTakeProfit
		if s.cfg.Monitor.TakeProfitStrategy == "partial" {
			quantity = holding.Quantity.Mul(decimal.NewFromFloat(s.cfg.Monitor.PartialExitFraction))
			trailStop = true
		}
	default:
		return nil, false
	}

	quantityF, _ := quantity.Float64()
	req := &dto.TradeRequest{
		PortfolioID:          portfolio.ID,
		Symbol:               holding.Symbol,
		Side:                 common.TradeSideSell,
		Quantity:             quantityF,
		Price:                snapshot.Price,
		Reasoning:            "position monitor " + reason + " crossing",
		ExecutionMethod:      common.ExecutionMethodScheduled,
		InitiatedBy:          common.StagePositionMonitor,
		Exit:                 true,
		TrailStopToBreakeven: trailStop,
	}

	check, err := s.riskSvc.Validate(ctx, req, portfolio, common.RiskModeAutomated)
	if err != nil {
		s.log.Error("Risk validation failed for forced exit",
			logger.StringField("symbol", holding.Symbol),
			logger.ErrorField(err),
		)
		return nil, false
	}
	if !check.Allowed {
		s.log.Warn("Forced exit rejected by risk gate",
			logger.StringField("symbol", holding.Symbol),
			logger.StringField("reason", check.Reason),
		)
		return nil, false
	}

	trade, err := s.executionSvc.Execute(ctx, req)
	if err != nil {
		s.log.Error("Forced exit execution failed",
			logger.StringField("symbol", holding.Symbol),
			logger.ErrorField(err),
		)
		return nil, false
	}

	realizedPnL := 0.0
	if trade.RealizedPnL != nil {
		realizedPnL, _ = trade.RealizedPnL.Float64()
	}
	msg := telegram.FormatForcedExitMessage(holding.Symbol, reason, quantityF, snapshot.Price, realizedPnL)
	if err := s.notifier.SendMessage(msg); err != nil {
		s.log.Warn("Failed to send forced exit notification", logger.ErrorField(err))
	}

	return &dto.ForcedExit{
		Symbol:       holding.Symbol,
		Reason:       reason,
		Quantity:     quantityF,
		TriggerPrice: snapshot.Price,
		TradeID:      trade.ID,
		RealizedPnL:  realizedPnL,
	}, true
}
