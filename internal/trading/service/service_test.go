package service

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
	"golang-paper-trader/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		Discovery: config.Discovery{
			Universe:       []string{"BTC", "ETH", "SOL"},
			DefaultProfile: "moderate",
			MaxConcurrency: 3,
			ResultTTL:      time.Minute,
			Profiles: map[string]config.Profile{
				"moderate": {
					MinMarketCap:     50_000_000,
					MinVolume24h:     2_000_000,
					MinVolumeChange:  1.3,
					MinPriceChange7d: -25,
					MaxPriceChange7d: 200,
					VolumeWeight:     0.30,
					MomentumWeight:   0.40,
					SentimentWeight:  0.30,
					ScoreThreshold:   65,
				},
				"debug": {
					MinMarketCap:     1_000_000,
					MinVolume24h:     100_000,
					MinVolumeChange:  0,
					MinPriceChange7d: -50,
					MaxPriceChange7d: 1000,
					VolumeWeight:     0.33,
					MomentumWeight:   0.33,
					SentimentWeight:  0.34,
					ScoreThreshold:   40,
				},
			},
		},
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
		Recommendations: config.Recommendations{
			MaxEntries:     5,
			MaxExits:       3,
			MinConfidence:  60,
			TTL:            time.Hour,
			VerdictTimeout: time.Second,
		},
		Monitor: config.Monitor{
			TakeProfitStrategy:  "full",
			PartialExitFraction: 0.5,
		},
	}
}

// fakeMarketData serves canned snapshots and records per-symbol failures.
type fakeMarketData struct {
	mu        sync.Mutex
	snapshots map[string]dto.Snapshot
	errs      map[string]error
}

func newFakeMarketData() *fakeMarketData {
	return &fakeMarketData{
		snapshots: make(map[string]dto.Snapshot),
		errs:      make(map[string]error),
	}
}

func (f *fakeMarketData) GetSnapshot(_ context.Context, symbol string) (*dto.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
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

func (f *fakeMarketData) fail(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[symbol] = err
}

// fakePortfolioRepo keeps portfolios in memory and applies trades without a
// real transaction.
type fakePortfolioRepo struct {
	mu         sync.Mutex
	portfolios map[uint]*entity.Portfolio
	trades     []entity.Trade
	applyDelay time.Duration
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
		cp := *p
		cp.Holdings = append([]entity.Holding(nil), p.Holdings...)
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakePortfolioRepo) ApplyTrade(_ context.Context, portfolio *entity.Portfolio, holding *entity.Holding, removeHolding bool, trade *entity.Trade) error {
	if f.applyDelay > 0 {
		time.Sleep(f.applyDelay)
	}
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

func (f *fakePortfolioRepo) tradeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trades)
}

// fakeTradeRepo serves the cadence rule.
type fakeTradeRepo struct {
	mu   sync.Mutex
	last map[uint]time.Time
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{last: make(map[uint]time.Time)}
}

func (f *fakeTradeRepo) FindByPortfolio(_ context.Context, _ uint, _ int) ([]entity.Trade, error) {
	return nil, nil
}

func (f *fakeTradeRepo) LastExecutedAt(_ context.Context, portfolioID uint) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.last[portfolioID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// fakeRecRepo stores recommendations in memory.
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
	now := time.Now()
	var out []entity.Recommendation
	for _, r := range f.recs {
		if r.PortfolioID == portfolioID && r.ExpiresAt.After(now) {
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

func (f *fakeRecRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// fakeVerdictRepo returns a scripted verdict per symbol.
type fakeVerdictRepo struct {
	mu       sync.Mutex
	verdicts map[string]*dto.Verdict
	errs     map[string]error
	calls    int
}

func newFakeVerdictRepo() *fakeVerdictRepo {
	return &fakeVerdictRepo{
		verdicts: make(map[string]*dto.Verdict),
		errs:     make(map[string]error),
	}
}

func (f *fakeVerdictRepo) GenerateVerdict(_ context.Context, bundle *dto.ContextBundle) (*dto.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[bundle.Symbol]; ok {
		return nil, err
	}
	if v, ok := f.verdicts[bundle.Symbol]; ok {
		return v, nil
	}
	return &dto.Verdict{Action: "HOLD", Confidence: 50}, nil
}

func newTestPortfolio(cash float64, holdings ...entity.Holding) *entity.Portfolio {
	return &entity.Portfolio{
		ID:       1,
		Name:     "test",
		Cash:     decimal.NewFromFloat(cash),
		Holdings: holdings,
	}
}
