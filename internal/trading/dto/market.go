package dto

import "time"

// Snapshot is the per-asset feature set supplied by the market data provider.
type Snapshot struct {
	Symbol            string    `json:"symbol"`
	Price             float64   `json:"price"`
	MarketCap         float64   `json:"market_cap"`
	Volume24h         float64   `json:"volume_24h"`
	VolumeChangeRatio float64   `json:"volume_change_ratio"`
	PriceChange24h    float64   `json:"price_change_24h"`
	PriceChange7d     float64   `json:"price_change_7d"`
	SentimentScore    float64   `json:"sentiment_score"`
	FetchedAt         time.Time `json:"fetched_at"`
}
