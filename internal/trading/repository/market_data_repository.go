package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/pkg/breaker"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/retry"

	"github.com/go-resty/resty/v2"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// MarketDataRepository provides per-asset market and sentiment snapshots.
// Snapshots are cached in Redis; upstream calls are rate-limited, retried
// with backoff, and short-circuited by a network circuit breaker.
type MarketDataRepository interface {
	GetSnapshot(ctx context.Context, symbol string) (*dto.Snapshot, error)
	// GetSnapshots fetches snapshots for many symbols, dropping the ones
	// that fail. The returned map may be smaller than the input.
	GetSnapshots(ctx context.Context, symbols []string) (map[string]dto.Snapshot, error)
}

type marketDataRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	client         *resty.Client
	redisClient    *goredis.Client
	requestLimiter *rate.Limiter
	breaker        *breaker.Breaker
}

// snapshotResponse is the provider's wire format.
type snapshotResponse struct {
	Symbol            string  `json:"symbol"`
	PriceUSD          float64 `json:"price_usd"`
	MarketCapUSD      float64 `json:"market_cap_usd"`
	Volume24hUSD      float64 `json:"volume_24h_usd"`
	VolumeChangeRatio float64 `json:"volume_change_ratio"`
	PriceChange24hPct float64 `json:"price_change_24h_pct"`
	PriceChange7dPct  float64 `json:"price_change_7d_pct"`
	SentimentScore    float64 `json:"sentiment_score"`
}

// NewMarketDataRepository creates a new market data repository.
func NewMarketDataRepository(cfg *config.Config, log *logger.Logger, redisClient *goredis.Client) MarketDataRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.MarketData.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	client := resty.New().
		SetBaseURL(cfg.MarketData.BaseURL).
		SetTimeout(cfg.MarketData.RequestTimeout).
		SetHeader("Accept", "application/json")
	if cfg.MarketData.APIKey != "" {
		client.SetHeader("X-Api-Key", cfg.MarketData.APIKey)
	}

	return &marketDataRepository{
		cfg:            cfg,
		log:            log,
		client:         client,
		redisClient:    redisClient,
		requestLimiter: requestLimiter,
		breaker: breaker.New(breaker.Config{
			FailureThreshold: cfg.MarketData.BreakerThreshold,
			Cooldown:         cfg.MarketData.BreakerCooldown,
		}),
	}
}

// GetSnapshot returns the snapshot for one symbol, from cache if fresh.
func (r *marketDataRepository) GetSnapshot(ctx context.Context, symbol string) (*dto.Snapshot, error) {
	if snapshot := r.fromCache(ctx, symbol); snapshot != nil {
		return snapshot, nil
	}

	var resp snapshotResponse
	fetch := func() error {
		if err := r.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for request limit: %w", err)
		}
		httpResp, err := r.client.R().
			SetContext(ctx).
			SetResult(&resp).
			Get(fmt.Sprintf("/v1/assets/%s/snapshot", symbol))
		if err != nil {
			return fmt.Errorf("failed to fetch snapshot for %s: %w", symbol, err)
		}
		if httpResp.IsError() {
			return fmt.Errorf("snapshot request for %s returned %d", symbol, httpResp.StatusCode())
		}
		return nil
	}

	err := r.breaker.Do(func() error {
		return retry.Do(ctx, retry.Config{
			MaxAttempts: r.cfg.MarketData.RetryMaxAttempts,
			BaseDelay:   r.cfg.MarketData.RetryBaseDelay,
			MaxDelay:    r.cfg.MarketData.RequestTimeout,
		}, fetch)
	})
	if err != nil {
		return nil, err
	}

	snapshot := &dto.Snapshot{
		Symbol:            symbol,
		Price:             resp.PriceUSD,
		MarketCap:         resp.MarketCapUSD,
		Volume24h:         resp.Volume24hUSD,
		VolumeChangeRatio: resp.VolumeChangeRatio,
		PriceChange24h:    resp.PriceChange24hPct,
		PriceChange7d:     resp.PriceChange7dPct,
		SentimentScore:    resp.SentimentScore,
		FetchedAt:         time.Now(),
	}
	r.toCache(ctx, snapshot)
	return snapshot, nil
}

// GetSnapshots fetches snapshots for many symbols. Symbols whose fetch
// fails are dropped; the caller decides whether a partial result is enough.
func (r *marketDataRepository) GetSnapshots(ctx context.Context, symbols []string) (map[string]dto.Snapshot, error) {
	result := make(map[string]dto.Snapshot, len(symbols))
	for _, symbol := range symbols {
		snapshot, err := r.GetSnapshot(ctx, symbol)
		if err != nil {
			r.log.Warn("Dropping symbol after snapshot failure",
				logger.StringField("symbol", symbol),
				logger.ErrorField(err),
			)
			continue
		}
		result[symbol] = *snapshot
	}
	return result, nil
}

func (r *marketDataRepository) fromCache(ctx context.Context, symbol string) *dto.Snapshot {
	raw, err := r.redisClient.Get(ctx, common.CacheKeyMarketSnapshot+symbol).Result()
	if err != nil {
		if err != goredis.Nil {
			r.log.Debug("Snapshot cache read failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		}
		return nil
	}
	var snapshot dto.Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil
	}
	return &snapshot
}

func (r *marketDataRepository) toCache(ctx context.Context, snapshot *dto.Snapshot) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := r.redisClient.Set(ctx, common.CacheKeyMarketSnapshot+snapshot.Symbol, raw, r.cfg.MarketData.CacheTTL).Err(); err != nil {
		r.log.Debug("Snapshot cache write failed", logger.StringField("symbol", snapshot.Symbol), logger.ErrorField(err))
	}
}
