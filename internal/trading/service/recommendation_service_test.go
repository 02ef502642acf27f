package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/pkg/telegram"
)

type recFixture struct {
	svc           RecommendationService
	marketData    *fakeMarketData
	portfolioRepo *fakePortfolioRepo
	recRepo       *fakeRecRepo
	verdictRepo   *fakeVerdictRepo
}

func newRecFixture(t *testing.T) *recFixture {
	t.Helper()
	cfg := testConfig()
	log := testLogger(t)
	marketData := newFakeMarketData()
	portfolioRepo := newFakePortfolioRepo()
	recRepo := &fakeRecRepo{}
	verdictRepo := newFakeVerdictRepo()
	tradeRepo := newFakeTradeRepo()
	breaker := NewDailyLossBreaker(cfg.Risk.MaxDailyLossFraction)

	discoverySvc := NewDiscoveryService(cfg, log, marketData)
	classifierSvc := NewClassifierService(log, marketData)
	riskSvc := NewRiskService(cfg, log, marketData, tradeRepo, breaker)
	svc := NewRecommendationService(cfg, log, discoverySvc, classifierSvc, portfolioRepo, recRepo, verdictRepo, riskSvc, telegram.NoopNotifier{})

	return &recFixture{
		svc:           svc,
		marketData:    marketData,
		portfolioRepo: portfolioRepo,
		recRepo:       recRepo,
		verdictRepo:   verdictRepo,
	}
}

func (f *recFixture) seedUniverse() {
	for _, symbol := range []string{"BTC", "ETH", "SOL"} {
		f.marketData.set(dto.Snapshot{
			Symbol: symbol, Price: 100, MarketCap: 1_000_000_000,
			Volume24h: 20_000_000, VolumeChangeRatio: 1.5,
			PriceChange24h: 30, PriceChange7d: 50, SentimentScore: 80,
		})
	}
}

func TestGenerateRecommendationsCountIdentity(t *testing.T) {
	f := newRecFixture(t)
	f.seedUniverse()
	require.NoError(t, f.portfolioRepo.Create(context.Background(), newTestPortfolio(10000)))

	f.verdictRepo.verdicts["BTC"] = &dto.Verdict{
		Action: "BUY", Confidence: 80, EntryPrice: 100, StopLoss: 95,
		PositionSizeFraction: 0.02, RiskLevel: "medium", Reasoning: "momentum",
	}
	f.verdictRepo.verdicts["ETH"] = &dto.Verdict{Action: "HOLD", Confidence: 90}
	f.verdictRepo.errs["SOL"] = errors.New("model overloaded")

	result, err := f.svc.GenerateRecommendations(context.Background(), 1, 5, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalOpportunities)
	assert.Equal(t, 3, result.TotalAnalyzed)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 2, result.AIRejected)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, result.TotalAnalyzed, result.Accepted+result.AIRejected)

	// Only the BUY verdict was persisted.
	recs, err := f.recRepo.FindActive(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "BTC", rec.Symbol)
	assert.Equal(t, "BUY", rec.Action)
	assert.NotEmpty(t, rec.Verdict)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rec.ExpiresAt, time.Minute)
}

func TestGenerateRecommendationsDiscardsLowConfidence(t *testing.T) {
	f := newRecFixture(t)
	f.seedUniverse()
	require.NoError(t, f.portfolioRepo.Create(context.Background(), newTestPortfolio(10000)))

	for _, symbol := range []string{"BTC", "ETH", "SOL"} {
		f.verdictRepo.verdicts[symbol] = &dto.Verdict{
			Action: "BUY", Confidence: 40, EntryPrice: 100, StopLoss: 95,
		}
	}

	result, err := f.svc.GenerateRecommendations(context.Background(), 1, 5, 3)
	require.NoError(t, err)

	assert.Zero(t, result.Accepted)
	assert.Equal(t, 3, result.AIRejected)
	recs, err := f.recRepo.FindActive(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGenerateRecommendationsTruncatesToTopK(t *testing.T) {
	f := newRecFixture(t)
	f.seedUniverse()
	require.NoError(t, f.portfolioRepo.Create(context.Background(), newTestPortfolio(10000)))

	result, err := f.svc.GenerateRecommendations(context.Background(), 1, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalOpportunities)
	assert.Equal(t, 1, result.TotalAnalyzed)
	assert.Equal(t, 1, f.verdictRepo.calls)
}

func TestGenerateRecommendationsSingleFlight(t *testing.T) {
	f := newRecFixture(t)
	f.seedUniverse()
	require.NoError(t, f.portfolioRepo.Create(context.Background(), newTestPortfolio(10000)))

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingVerdictRepo{started: started, release: release}

	cfg := testConfig()
	log := testLogger(t)
	discoverySvc := NewDiscoveryService(cfg, log, f.marketData)
	classifierSvc := NewClassifierService(log, f.marketData)
	riskSvc := NewRiskService(cfg, log, f.marketData, newFakeTradeRepo(), NewDailyLossBreaker(0.04))
	svc := NewRecommendationService(cfg, log, discoverySvc, classifierSvc, f.portfolioRepo, f.recRepo, blocking, riskSvc, telegram.NoopNotifier{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateRecommendations(context.Background(), 1, 5, 3)
		done <- err
	}()

	<-started
	_, err := svc.GenerateRecommendations(context.Background(), 1, 5, 3)
	assert.ErrorIs(t, err, dto.ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

// blockingVerdictRepo parks the first verdict call until released.
type blockingVerdictRepo struct {
	started chan struct{}
	release chan struct{}
	once    bool
}

func (b *blockingVerdictRepo) GenerateVerdict(ctx context.Context, _ *dto.ContextBundle) (*dto.Verdict, error) {
	if !b.once {
		b.once = true
		close(b.started)
		select {
		case <-b.release:
		case <-ctx.Done():
		}
	}
	return &dto.Verdict{Action: "HOLD", Confidence: 50}, nil
}

func TestGenerateRecommendationsUnknownPortfolio(t *testing.T) {
	f := newRecFixture(t)
	f.seedUniverse()

	_, err := f.svc.GenerateRecommendations(context.Background(), 42, 5, 3)
	assert.ErrorIs(t, err, dto.ErrPortfolioNotFound)
}
