package config

import (
	"fmt"
	"time"

	"golang-paper-trader/pkg/config"
)

// Profile is one discovery strategy profile: hard filters plus score weights
// and the composite threshold.
type Profile struct {
	MinMarketCap      float64 `mapstructure:"min_market_cap"`
	MinVolume24h      float64 `mapstructure:"min_volume_24h"`
	MinVolumeChange   float64 `mapstructure:"min_volume_change"`
	MinPriceChange7d  float64 `mapstructure:"min_price_change_7d"`
	MaxPriceChange7d  float64 `mapstructure:"max_price_change_7d"`
	VolumeWeight      float64 `mapstructure:"volume_weight"`
	MomentumWeight    float64 `mapstructure:"momentum_weight"`
	SentimentWeight   float64 `mapstructure:"sentiment_weight"`
	ScoreThreshold    float64 `mapstructure:"score_threshold"`
}

// Discovery holds discovery engine configuration.
type Discovery struct {
	// Universe is the list of scannable symbols, bounded upstream by market cap.
	Universe       []string           `mapstructure:"universe"`
	DefaultProfile string             `mapstructure:"default_profile"`
	Profiles       map[string]Profile `mapstructure:"profiles"`
	MaxConcurrency int                `mapstructure:"max_concurrency"`
	ResultTTL      time.Duration      `mapstructure:"result_ttl"`
	CronExpression string             `mapstructure:"cron_expression"`
}

// Risk holds the centrally configurable risk gate limits.
type Risk struct {
	MaxAutoPositionFraction   float64       `mapstructure:"max_auto_position_fraction"`
	MaxManualPositionFraction float64       `mapstructure:"max_manual_position_fraction"`
	MaxStopLossDistance       float64       `mapstructure:"max_stop_loss_distance"`
	MaxOpenPositions          int           `mapstructure:"max_open_positions"`
	MaxDailyLossFraction      float64       `mapstructure:"max_daily_loss_fraction"`
	MinTradeInterval          time.Duration `mapstructure:"min_trade_interval"`
	MinLiquidityVolume24h     float64       `mapstructure:"min_liquidity_volume_24h"`
}

// Execution holds fee and slippage accounting settings.
type Execution struct {
	FeeRate         float64 `mapstructure:"fee_rate"`
	SlippageRateMin float64 `mapstructure:"slippage_rate_min"`
	SlippageRateMax float64 `mapstructure:"slippage_rate_max"`
}

// Recommendations holds orchestrator configuration.
type Recommendations struct {
	MaxEntries     int           `mapstructure:"max_entries"`
	MaxExits       int           `mapstructure:"max_exits"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	TTL            time.Duration `mapstructure:"ttl"`
	VerdictTimeout time.Duration `mapstructure:"verdict_timeout"`
	CronExpression string        `mapstructure:"cron_expression"`
}

// Monitor holds position monitor configuration.
type Monitor struct {
	CronExpression string `mapstructure:"cron_expression"`
	// TakeProfitStrategy is "full" or "partial". Partial sells
	// PartialExitFraction of the position and moves the stop to breakeven.
	TakeProfitStrategy  string  `mapstructure:"take_profit_strategy"`
	PartialExitFraction float64 `mapstructure:"partial_exit_fraction"`
}

// MarketData holds the snapshot provider client configuration.
type MarketData struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	RetryMaxAttempts    int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	BreakerThreshold    int           `mapstructure:"breaker_threshold"`
	BreakerCooldown     time.Duration `mapstructure:"breaker_cooldown"`
}

// Gemini holds the configuration for the Gemini verdict generator.
type Gemini struct {
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	BreakerThreshold    int           `mapstructure:"breaker_threshold"`
	BreakerCooldown     time.Duration `mapstructure:"breaker_cooldown"`
}

// Config holds the full configuration for the trading service.
type Config struct {
	App             config.App      `mapstructure:"app"`
	Logger          config.Logger   `mapstructure:"logger"`
	Database        config.Database `mapstructure:"database"`
	Redis           config.Redis    `mapstructure:"redis"`
	API             config.API      `mapstructure:"api"`
	Telegram        config.Telegram `mapstructure:"telegram"`
	Discovery       Discovery       `mapstructure:"discovery"`
	Risk            Risk            `mapstructure:"risk"`
	Execution       Execution       `mapstructure:"execution"`
	Recommendations Recommendations `mapstructure:"recommendations"`
	Monitor         Monitor         `mapstructure:"monitor"`
	MarketData      MarketData      `mapstructure:"market_data"`
	Gemini          Gemini          `mapstructure:"gemini"`
}

// Load loads the trading service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Discovery.Profiles) == 0 {
		return fmt.Errorf("discovery.profiles must not be empty")
	}
	if _, ok := c.Discovery.Profiles[c.Discovery.DefaultProfile]; !ok {
		return fmt.Errorf("discovery.default_profile %q is not a configured profile", c.Discovery.DefaultProfile)
	}
	for name, p := range c.Discovery.Profiles {
		sum := p.VolumeWeight + p.MomentumWeight + p.SentimentWeight
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("profile %q weights sum to %.4f, want 1.0", name, sum)
		}
	}
	if c.Discovery.MaxConcurrency <= 0 {
		return fmt.Errorf("discovery.max_concurrency must be positive, got %d", c.Discovery.MaxConcurrency)
	}
	if c.Execution.SlippageRateMax < c.Execution.SlippageRateMin {
		return fmt.Errorf("execution.slippage_rate_max below slippage_rate_min")
	}
	return nil
}
