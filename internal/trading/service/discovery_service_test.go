package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-paper-trader/internal/trading/dto"
)

func TestDiscoverFiltersAndScores(t *testing.T) {
	cfg := testConfig()
	marketData := newFakeMarketData()
	// Saturates volume at 10x the floor, pegs both momentum bands.
	marketData.set(dto.Snapshot{
		Symbol: "BTC", Price: 50000, MarketCap: 1_000_000_000,
		Volume24h: 20_000_000, VolumeChangeRatio: 1.5,
		PriceChange24h: 30, PriceChange7d: 50, SentimentScore: 80,
	})
	// Under the composite threshold.
	marketData.set(dto.Snapshot{
		Symbol: "ETH", Price: 3000, MarketCap: 400_000_000,
		Volume24h: 2_000_000, VolumeChangeRatio: 1.4,
		PriceChange24h: 0, PriceChange7d: 0, SentimentScore: 50,
	})
	// Fails the market-cap hard filter.
	marketData.set(dto.Snapshot{
		Symbol: "SOL", Price: 150, MarketCap: 10_000_000,
		Volume24h: 5_000_000, VolumeChangeRatio: 2.0,
		PriceChange24h: 10, PriceChange7d: 20, SentimentScore: 90,
	})

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)
	candidates, err := svc.Discover(context.Background(), "moderate")
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.Equal(t, "BTC", c.Symbol)
	assert.InDelta(t, 100, c.VolumeScore, 0.001)
	assert.InDelta(t, 100, c.MomentumScore, 0.001)
	assert.InDelta(t, 80, c.SentimentScore, 0.001)
	// 0.30*100 + 0.40*100 + 0.30*80
	assert.InDelta(t, 94, c.CompositeScore, 0.001)
	assert.Equal(t, "moderate", c.Profile)
}

func TestDiscoverDeterministic(t *testing.T) {
	cfg := testConfig()
	marketData := newFakeMarketData()
	for _, s := range []dto.Snapshot{
		{Symbol: "BTC", MarketCap: 1_000_000_000, Volume24h: 30_000_000, VolumeChangeRatio: 1.5, PriceChange24h: 5, PriceChange7d: 10, SentimentScore: 70},
		{Symbol: "ETH", MarketCap: 500_000_000, Volume24h: 25_000_000, VolumeChangeRatio: 1.5, PriceChange24h: 8, PriceChange7d: 15, SentimentScore: 75},
		{Symbol: "SOL", MarketCap: 200_000_000, Volume24h: 22_000_000, VolumeChangeRatio: 1.5, PriceChange24h: 3, PriceChange7d: 30, SentimentScore: 65},
	} {
		marketData.set(s)
	}

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)
	first, err := svc.Discover(context.Background(), "moderate")
	require.NoError(t, err)
	second, err := svc.Discover(context.Background(), "moderate")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Symbol, second[i].Symbol)
		assert.Equal(t, first[i].CompositeScore, second[i].CompositeScore)
	}
}

func TestDiscoverTieBreakByVolume(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.Universe = []string{"AAA", "BBB"}
	marketData := newFakeMarketData()
	// Both volume scores saturate, identical momentum and sentiment: equal
	// composite, different raw volume.
	marketData.set(dto.Snapshot{
		Symbol: "AAA", MarketCap: 500_000_000, Volume24h: 30_000_000,
		VolumeChangeRatio: 1.5, PriceChange24h: 30, PriceChange7d: 50, SentimentScore: 80,
	})
	marketData.set(dto.Snapshot{
		Symbol: "BBB", MarketCap: 500_000_000, Volume24h: 40_000_000,
		VolumeChangeRatio: 1.5, PriceChange24h: 30, PriceChange7d: 50, SentimentScore: 80,
	})

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)
	candidates, err := svc.Discover(context.Background(), "moderate")
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, candidates[0].CompositeScore, candidates[1].CompositeScore)
	assert.Equal(t, "BBB", candidates[0].Symbol)
}

func TestDiscoverDropsFailedAssets(t *testing.T) {
	cfg := testConfig()
	marketData := newFakeMarketData()
	marketData.set(dto.Snapshot{
		Symbol: "BTC", MarketCap: 1_000_000_000, Volume24h: 20_000_000,
		VolumeChangeRatio: 1.5, PriceChange24h: 30, PriceChange7d: 50, SentimentScore: 80,
	})
	marketData.fail("ETH", errors.New("upstream 503"))
	marketData.fail("SOL", errors.New("upstream 503"))

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)
	candidates, err := svc.Discover(context.Background(), "moderate")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "BTC", candidates[0].Symbol)
}

func TestDiscoverTotalProviderFailure(t *testing.T) {
	cfg := testConfig()
	marketData := newFakeMarketData()
	for _, symbol := range cfg.Discovery.Universe {
		marketData.fail(symbol, errors.New("upstream down"))
	}

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)
	_, err := svc.Discover(context.Background(), "moderate")
	assert.ErrorIs(t, err, dto.ErrProviderUnavailable)
}

func TestDiscoverUnknownProfile(t *testing.T) {
	svc := NewDiscoveryService(testConfig(), testLogger(t), newFakeMarketData())
	_, err := svc.Discover(context.Background(), "yolo")
	assert.Error(t, err)
}

func TestDebugProfileDisablesVolumeChangeFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.Universe = []string{"AAA"}
	marketData := newFakeMarketData()
	marketData.set(dto.Snapshot{
		Symbol: "AAA", MarketCap: 2_000_000, Volume24h: 1_000_000,
		VolumeChangeRatio: 0.2, // would fail any non-zero minimum
		PriceChange24h: 20, PriceChange7d: 40, SentimentScore: 60,
	})

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)
	candidates, err := svc.Discover(context.Background(), "debug")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestRunCachesResult(t *testing.T) {
	cfg := testConfig()
	marketData := newFakeMarketData()
	marketData.set(dto.Snapshot{
		Symbol: "BTC", MarketCap: 1_000_000_000, Volume24h: 20_000_000,
		VolumeChangeRatio: 1.5, PriceChange24h: 30, PriceChange7d: 50, SentimentScore: 80,
	})
	marketData.fail("ETH", errors.New("down"))
	marketData.fail("SOL", errors.New("down"))

	svc := NewDiscoveryService(cfg, testLogger(t), marketData)

	_, ok := svc.CachedCandidates("moderate")
	assert.False(t, ok)

	candidates, err := svc.Run(context.Background(), "moderate")
	require.NoError(t, err)

	cached, ok := svc.CachedCandidates("moderate")
	require.True(t, ok)
	assert.Equal(t, candidates, cached)
}
