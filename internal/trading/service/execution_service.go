package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/keylock"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/telegram"
	"golang-paper-trader/pkg/utils"
)

// ExecutionService applies approved trades to portfolios. It is the only
// writer of portfolio cash and holdings; invocations for the same portfolio
// are serialized by a keyed mutex while independent portfolios execute
// concurrently.
type ExecutionService interface {
	Execute(ctx context.Context, req *dto.TradeRequest) (*entity.Trade, error)
	// Drain blocks until every in-flight Execute call has finished. Called
	// during shutdown.
	Drain()
}

type executionService struct {
	cfg           *config.Config
	log           *logger.Logger
	portfolioRepo repository.PortfolioRepository
	riskSvc       RiskService
	notifier      telegram.Notifier
	locks         *keylock.KeyedMutex
	inFlight      sync.WaitGroup
}

// NewExecutionService creates a new trade execution engine.
func NewExecutionService(cfg *config.Config, log *logger.Logger, portfolioRepo repository.PortfolioRepository, riskSvc RiskService, notifier telegram.Notifier) ExecutionService {
	return &executionService{
		cfg:           cfg,
		log:           log,
		portfolioRepo: portfolioRepo,
		riskSvc:       riskSvc,
		notifier:      notifier,
		locks:         keylock.New(),
	}
}

// Execute applies one approved trade. All steps are atomic as a unit: every
// success path appends exactly one trade row, every failure path mutates
// nothing.
func (s *executionService) Execute(ctx context.Context, req *dto.TradeRequest) (*entity.Trade, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	lockKey := fmt.Sprintf("portfolio:%d", req.PortfolioID)
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	portfolio, err := s.portfolioRepo.FindByID(ctx, req.PortfolioID)
	if err != nil {
		return nil, err
	}

	quantity := decimal.NewFromFloat(req.Quantity)
	price := decimal.NewFromFloat(req.Price)
	if !quantity.IsPositive() || !price.IsPositive() {
		return nil, fmt.Errorf("quantity and price must be positive")
	}

	notional := quantity.Mul(price)
	fee := notional.Mul(decimal.NewFromFloat(s.cfg.Execution.FeeRate))
	slippage := notional.Mul(decimal.NewFromFloat(s.slippageRate()))

	var trade *entity.Trade
	switch req.Side {
	case common.TradeSideBuy:
		trade, err = s.executeBuy(ctx, req, portfolio, quantity, price, notional, fee, slippage)
	case common.TradeSideSell:
		trade, err = s.executeSell(ctx, req, portfolio, quantity, price, notional, fee, slippage)
	default:
		return nil, fmt.Errorf("unknown trade side %q", req.Side)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Trade executed",
		logger.StringField("trade_id", trade.ID),
		logger.StringField("symbol", trade.Symbol),
		logger.StringField("side", trade.Side),
		logger.StringField("method", trade.ExecutionMethod),
		logger.StringField("total", trade.TotalCost.String()),
		logger.StringField("cash_after", portfolio.Cash.String()),
	)
	s.notifyExecuted(trade, portfolio)
	return trade, nil
}

// Drain waits for in-flight executions.
func (s *executionService) Drain() {
	s.inFlight.Wait()
}

func (s *executionService) executeBuy(ctx context.Context, req *dto.TradeRequest, portfolio *entity.Portfolio, quantity, price, notional, fee, slippage decimal.Decimal) (*entity.Trade, error) {
	totalCost := notional.Add(fee).Add(slippage)
	if portfolio.Cash.LessThan(totalCost) {
		return nil, fmt.Errorf("%w: need %s, have %s", dto.ErrInsufficientFunds, totalCost, portfolio.Cash)
	}
	portfolio.Cash = portfolio.Cash.Sub(totalCost)

	holding := portfolio.Holding(req.Symbol)
	if holding == nil {
		holding = &entity.Holding{
			PortfolioID:  portfolio.ID,
			Symbol:       req.Symbol,
			Quantity:     quantity,
			AveragePrice: price,
		}
		portfolio.Holdings = append(portfolio.Holdings, *holding)
		holding = &portfolio.Holdings[len(portfolio.Holdings)-1]
	} else {
		// New average price is the weighted mean of the old and new cost basis.
		newQuantity := holding.Quantity.Add(quantity)
		holding.AveragePrice = holding.CostBasis().Add(notional).Div(newQuantity)
		holding.Quantity = newQuantity
	}
	if req.StopLoss != nil && *req.StopLoss > 0 {
		holding.StopLoss = utils.ToPointer(decimal.NewFromFloat(*req.StopLoss))
	}
	if req.TakeProfit != nil && *req.TakeProfit > 0 {
		holding.TakeProfit = utils.ToPointer(decimal.NewFromFloat(*req.TakeProfit))
	}

	trade := s.newTrade(req, quantity, price, fee, slippage, totalCost, nil)
	if err := s.portfolioRepo.ApplyTrade(ctx, portfolio, holding, false, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

func (s *executionService) executeSell(ctx context.Context, req *dto.TradeRequest, portfolio *entity.Portfolio, quantity, price, notional, fee, slippage decimal.Decimal) (*entity.Trade, error) {
	holding := portfolio.Holding(req.Symbol)
	if holding == nil || holding.Quantity.LessThan(quantity) {
		return nil, fmt.Errorf("%w: %s", dto.ErrInsufficientQuantity, req.Symbol)
	}

	totalProceeds := notional.Sub(fee).Sub(slippage)
	portfolio.Cash = portfolio.Cash.Add(totalProceeds)

	realizedPnL := totalProceeds.Sub(quantity.Mul(holding.AveragePrice))

	holding.Quantity = holding.Quantity.Sub(quantity)
	removeHolding := holding.Quantity.IsZero()
	if !removeHolding && req.TrailStopToBreakeven {
		// Partial take-profit: protect the remainder at breakeven.
		holding.StopLoss = utils.ToPointer(holding.AveragePrice)
	}

	trade := s.newTrade(req, quantity, price, fee, slippage, totalProceeds, &realizedPnL)
	if err := s.portfolioRepo.ApplyTrade(ctx, portfolio, holding, removeHolding, trade); err != nil {
		return nil, err
	}
	if removeHolding {
		s.dropHolding(portfolio, req.Symbol)
	}

	// Every closeout feeds the daily-loss circuit breaker.
	portfolioValue := s.riskSvc.PortfolioValue(ctx, portfolio)
	if s.riskSvc.Breaker().RecordRealizedPnL(time.Now(), realizedPnL, portfolioValue) {
		s.notifyHalt()
	}

	return trade, nil
}

func (s *executionService) newTrade(req *dto.TradeRequest, quantity, price, fee, slippage, total decimal.Decimal, realizedPnL *decimal.Decimal) *entity.Trade {
	trade := &entity.Trade{
		ID:               uuid.NewString(),
		PortfolioID:      req.PortfolioID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Quantity:         quantity,
		Price:            price,
		Fee:              fee,
		Slippage:         slippage,
		TotalCost:        total,
		RealizedPnL:      realizedPnL,
		Reasoning:        req.Reasoning,
		RecommendationID: req.RecommendationID,
		ExecutionMethod:  req.ExecutionMethod,
		InitiatedBy:      req.InitiatedBy,
		ExecutedAt:       time.Now(),
	}
	if req.StopLoss != nil && *req.StopLoss > 0 {
		trade.StopLoss = utils.ToPointer(decimal.NewFromFloat(*req.StopLoss))
	}
	if req.TakeProfit != nil && *req.TakeProfit > 0 {
		trade.TakeProfit = utils.ToPointer(decimal.NewFromFloat(*req.TakeProfit))
	}
	return trade
}

// slippageRate draws a rate uniformly from the configured band to simulate
// realistic fills.
func (s *executionService) slippageRate() float64 {
	min, max := s.cfg.Execution.SlippageRateMin, s.cfg.Execution.SlippageRateMax
	if max <= min {
		return min
	}
	return min + rand.Float64()*(max-min)
}

func (s *executionService) dropHolding(portfolio *entity.Portfolio, symbol string) {
	for i := range portfolio.Holdings {
		if portfolio.Holdings[i].Symbol == symbol {
			portfolio.Holdings = append(portfolio.Holdings[:i], portfolio.Holdings[i+1:]...)
			return
		}
	}
}

func (s *executionService) notifyExecuted(trade *entity.Trade, portfolio *entity.Portfolio) {
	quantity, _ := trade.Quantity.Float64()
	price, _ := trade.Price.Float64()
	total, _ := trade.TotalCost.Float64()
	cash, _ := portfolio.Cash.Float64()
	msg := telegram.FormatTradeExecutedMessage(trade.Side, trade.Symbol, quantity, price, total, cash, trade.ExecutionMethod, trade.ExecutedAt)
	if err := s.notifier.SendMessage(msg); err != nil {
		s.log.Warn("Failed to send trade notification", logger.ErrorField(err))
	}
}

func (s *executionService) notifyHalt() {
	now := time.Now()
	msg := telegram.FormatDailyLossHaltMessage(utils.DateKey(now), s.riskSvc.Breaker().LossFraction(now), s.cfg.Risk.MaxDailyLossFraction)
	if err := s.notifier.SendMessage(msg); err != nil {
		s.log.Warn("Failed to send halt notification", logger.ErrorField(err))
	}
}
