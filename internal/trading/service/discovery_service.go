package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DiscoveryService scans the configured universe and reduces it to a ranked
// candidate list for a strategy profile.
type DiscoveryService interface {
	// Run performs a guarded discovery sweep and caches the result. It is
	// single-flight: a trigger while a run is active returns
	// dto.ErrRunInProgress.
	Run(ctx context.Context, profileName string) ([]dto.Candidate, error)
	// Discover scores the universe without touching the guard or the cache.
	// Pure apart from snapshot fetches.
	Discover(ctx context.Context, profileName string) ([]dto.Candidate, error)
	// CachedCandidates returns the last Run result for a profile, if fresh.
	CachedCandidates(profileName string) ([]dto.Candidate, bool)
}

type discoveryService struct {
	cfg        *config.Config
	log        *logger.Logger
	marketData repository.MarketDataRepository
	results    *gocache.Cache
	inFlight   *semaphore.Weighted
}

// NewDiscoveryService creates a new discovery service.
func NewDiscoveryService(cfg *config.Config, log *logger.Logger, marketData repository.MarketDataRepository) DiscoveryService {
	return &discoveryService{
		cfg:        cfg,
		log:        log,
		marketData: marketData,
		results:    gocache.New(cfg.Discovery.ResultTTL, 2*cfg.Discovery.ResultTTL),
		inFlight:   semaphore.NewWeighted(1),
	}
}

// Run performs a single-flight discovery sweep.
func (s *discoveryService) Run(ctx context.Context, profileName string) ([]dto.Candidate, error) {
	if !s.inFlight.TryAcquire(1) {
		return nil, dto.ErrRunInProgress
	}
	defer s.inFlight.Release(1)

	started := time.Now()
	candidates, err := s.Discover(ctx, profileName)
	if err != nil {
		return nil, err
	}

	s.results.Set(profileName, candidates, gocache.DefaultExpiration)
	s.log.Info("Discovery run completed",
		logger.StringField("profile", profileName),
		logger.IntField("universe", len(s.cfg.Discovery.Universe)),
		logger.IntField("candidates", len(candidates)),
		logger.DurationField("elapsed", time.Since(started)),
	)
	return candidates, nil
}

// CachedCandidates returns the last cached result for a profile.
func (s *discoveryService) CachedCandidates(profileName string) ([]dto.Candidate, bool) {
	v, ok := s.results.Get(profileName)
	if !ok {
		return nil, false
	}
	candidates, ok := v.([]dto.Candidate)
	return candidates, ok
}

// Discover scores every universe asset against the profile and returns the
// survivors ranked by composite score. Assets whose snapshot cannot be
// fetched are dropped for this run; if no snapshot at all can be fetched the
// provider is considered unavailable.
func (s *discoveryService) Discover(ctx context.Context, profileName string) ([]dto.Candidate, error) {
	profile, ok := s.cfg.Discovery.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("unknown strategy profile %q", profileName)
	}

	universe := s.cfg.Discovery.Universe
	if len(universe) == 0 {
		return nil, nil
	}

	discoveredAt := time.Now()
	snapshots := make([]*dto.Snapshot, len(universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Discovery.MaxConcurrency)
	for i, symbol := range universe {
		g.Go(func() error {
			snapshot, err := s.marketData.GetSnapshot(gctx, symbol)
			if err != nil {
				// Dropped, never scored as zero.
				s.log.Debug("Dropping asset from discovery run",
					logger.StringField("symbol", symbol),
					logger.ErrorField(err),
				)
				return nil
			}
			snapshots[i] = snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fetched := 0
	candidates := make([]dto.Candidate, 0, len(universe))
	for _, snapshot := range snapshots {
		if snapshot == nil {
			continue
		}
		fetched++
		if !passesFilters(snapshot, profile) {
			continue
		}
		candidate := scoreCandidate(snapshot, profileName, profile, discoveredAt)
		if candidate.CompositeScore < profile.ScoreThreshold {
			continue
		}
		candidates = append(candidates, candidate)
	}

	if fetched == 0 {
		return nil, dto.ErrProviderUnavailable
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CompositeScore != candidates[j].CompositeScore {
			return candidates[i].CompositeScore > candidates[j].CompositeScore
		}
		return candidates[i].Snapshot.Volume24h > candidates[j].Snapshot.Volume24h
	})
	return candidates, nil
}

// passesFilters applies the profile's hard filters.
func passesFilters(s *dto.Snapshot, p config.Profile) bool {
	if s.MarketCap < p.MinMarketCap {
		return false
	}
	if s.Volume24h < p.MinVolume24h {
		return false
	}
	// A zero minimum disables the volume-change filter (debug profile).
	if p.MinVolumeChange > 0 && s.VolumeChangeRatio < p.MinVolumeChange {
		return false
	}
	if s.PriceChange7d < p.MinPriceChange7d || s.PriceChange7d > p.MaxPriceChange7d {
		return false
	}
	return true
}

// scoreCandidate computes the sub-scores and the weighted composite.
func scoreCandidate(s *dto.Snapshot, profileName string, p config.Profile, discoveredAt time.Time) dto.Candidate {
	volumeScore := volumeScore(s.Volume24h, p.MinVolume24h)
	momentumScore := momentumScore(s.PriceChange24h, s.PriceChange7d)
	sentimentScore := clamp(s.SentimentScore, 0, 100)

	composite := p.VolumeWeight*volumeScore +
		p.MomentumWeight*momentumScore +
		p.SentimentWeight*sentimentScore

	return dto.Candidate{
		Symbol:         s.Symbol,
		Snapshot:       *s,
		VolumeScore:    volumeScore,
		MomentumScore:  momentumScore,
		SentimentScore: sentimentScore,
		CompositeScore: composite,
		Profile:        profileName,
		DiscoveredAt:   discoveredAt,
	}
}

// volumeScore is logarithmic in the ratio of 24h volume to the profile's
// floor and saturates at 10x the floor.
func volumeScore(volume24h, minVolume float64) float64 {
	if volume24h <= 0 || minVolume <= 0 {
		return 0
	}
	return clamp(math.Log10(volume24h/minVolume)*100, 0, 100)
}

// momentumScore blends the 24h change (normalized over ±30%) and the 7d
// change (normalized over ±50%), weighted 40/60.
func momentumScore(priceChange24h, priceChange7d float64) float64 {
	return 0.4*normalize(priceChange24h, -30, 30) + 0.6*normalize(priceChange7d, -50, 50)
}

// normalize maps v linearly from [min, max] onto [0, 100], clamped.
func normalize(v, min, max float64) float64 {
	return clamp((v-min)/(max-min)*100, 0, 100)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
