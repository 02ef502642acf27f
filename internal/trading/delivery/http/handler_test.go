package http

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/service"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/telegram"
)

// In-memory repository fakes shared by the handler tests.

type fakePortfolioRepo struct {
	mu         sync.Mutex
	portfolios map[uint]*entity.Portfolio
	trades     []entity.Trade
	nextID     uint
}

func newFakePortfolioRepo() *fakePortfolioRepo {
	return &fakePortfolioRepo{portfolios: make(map[uint]*entity.Portfolio), nextID: 1}
}

func (f *fakePortfolioRepo) Create(_ context.Context, portfolio *entity.Portfolio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	portfolio.ID = f.nextID
	f.nextID++
	f.portfolios[portfolio.ID] = portfolio
	return nil
}

func (f *fakePortfolioRepo) FindByID(_ context.Context, id uint) (*entity.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.portfolios[id]
	if !ok {
		return nil, dto.ErrPortfolioNotFound
	}
	cp := *p
	cp.Holdings = append([]entity.Holding(nil), p.Holdings...)
	return &cp, nil
}

func (f *fakePortfolioRepo) FindAll(_ context.Context) ([]entity.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Portfolio, 0, len(f.portfolios))
	for _, p := range f.portfolios {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePortfolioRepo) ApplyTrade(_ context.Context, portfolio *entity.Portfolio, holding *entity.Holding, removeHolding bool, trade *entity.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.portfolios[portfolio.ID]
	if !ok {
		return dto.ErrPortfolioNotFound
	}
	stored.Cash = portfolio.Cash
	if holding != nil {
		idx := -1
		for i := range stored.Holdings {
			if stored.Holdings[i].Symbol == holding.Symbol {
				idx = i
				break
			}
		}
		switch {
		case removeHolding && idx >= 0:
			stored.Holdings = append(stored.Holdings[:idx], stored.Holdings[idx+1:]...)
		case idx >= 0:
			stored.Holdings[idx] = *holding
		case !removeHolding:
			stored.Holdings = append(stored.Holdings, *holding)
		}
	}
	f.trades = append(f.trades, *trade)
	return nil
}

type fakeTradeRepo struct{}

func (fakeTradeRepo) FindByPortfolio(_ context.Context, _ uint, _ int) ([]entity.Trade, error) {
	return nil, nil
}

func (fakeTradeRepo) LastExecutedAt(_ context.Context, _ uint) (*time.Time, error) {
	return nil, nil
}

type fakeMarketData struct {
	mu        sync.Mutex
	snapshots map[string]dto.Snapshot
}

func newFakeMarketData() *fakeMarketData {
	return &fakeMarketData{snapshots: make(map[string]dto.Snapshot)}
}

func (f *fakeMarketData) GetSnapshot(_ context.Context, symbol string) (*dto.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[symbol]
	if !ok {
		return nil, dto.ErrProviderUnavailable
	}
	return &s, nil
}

func (f *fakeMarketData) GetSnapshots(ctx context.Context, symbols []string) (map[string]dto.Snapshot, error) {
	out := make(map[string]dto.Snapshot, len(symbols))
	for _, symbol := range symbols {
		s, err := f.GetSnapshot(ctx, symbol)
		if err != nil {
			continue
		}
		out[symbol] = *s
	}
	return out, nil
}

func (f *fakeMarketData) set(s dto.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[s.Symbol] = s
}

type fakeRecRepo struct {
	mu   sync.Mutex
	recs []entity.Recommendation
}

func (f *fakeRecRepo) Create(_ context.Context, rec *entity.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeRecRepo) FindActive(_ context.Context, portfolioID uint) ([]entity.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Recommendation
	for _, r := range f.recs {
		if r.PortfolioID == portfolioID && r.ExpiresAt.After(time.Now()) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecRepo) FindActiveByID(_ context.Context, id string) (*entity.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID == id && f.recs[i].ExpiresAt.After(time.Now()) {
			r := f.recs[i]
			return &r, nil
		}
	}
	return nil, dto.ErrRecommendationNotFound
}

func (f *fakeRecRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

// handlerFixture wires real risk and execution services over the fakes.
type handlerFixture struct {
	cfg           *config.Config
	log           *logger.Logger
	portfolioRepo *fakePortfolioRepo
	marketData    *fakeMarketData
	recRepo       *fakeRecRepo
	riskSvc       service.RiskService
	executionSvc  service.ExecutionService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)

	cfg := &config.Config{
		Risk: config.Risk{
			MaxAutoPositionFraction:   0.05,
			MaxManualPositionFraction: 0.20,
			MaxStopLossDistance:       0.10,
			MaxOpenPositions:          10,
			MaxDailyLossFraction:      0.04,
			MinTradeInterval:          15 * time.Minute,
			MinLiquidityVolume24h:     100_000,
		},
		Execution: config.Execution{
			FeeRate:         0.001,
			SlippageRateMin: 0.001,
			SlippageRateMax: 0.001,
		},
	}

	portfolioRepo := newFakePortfolioRepo()
	marketData := newFakeMarketData()
	breaker := service.NewDailyLossBreaker(cfg.Risk.MaxDailyLossFraction)
	riskSvc := service.NewRiskService(cfg, log, marketData, fakeTradeRepo{}, breaker)
	executionSvc := service.NewExecutionService(cfg, log, portfolioRepo, riskSvc, telegram.NoopNotifier{})

	return &handlerFixture{
		cfg:           cfg,
		log:           log,
		portfolioRepo: portfolioRepo,
		marketData:    marketData,
		recRepo:       &fakeRecRepo{},
		riskSvc:       riskSvc,
		executionSvc:  executionSvc,
	}
}

func (f *handlerFixture) seedPortfolio(t *testing.T, cash float64, holdings ...entity.Holding) {
	t.Helper()
	require.NoError(t, f.portfolioRepo.Create(context.Background(), &entity.Portfolio{
		Name:     "test",
		Cash:     decimal.NewFromFloat(cash),
		Holdings: holdings,
	}))
}
