package dto

import "time"

// Candidate is one asset that passed a discovery profile's hard filters,
// with its scores. Candidates are ephemeral: each discovery run supersedes
// the previous one, and a candidate is never an execution authority.
type Candidate struct {
	Symbol         string    `json:"symbol"`
	Snapshot       Snapshot  `json:"snapshot"`
	VolumeScore    float64   `json:"volume_score"`
	MomentumScore  float64   `json:"momentum_score"`
	SentimentScore float64   `json:"sentiment_score"`
	CompositeScore float64   `json:"composite_score"`
	Profile        string    `json:"profile"`
	DiscoveredAt   time.Time `json:"discovered_at"`
}
