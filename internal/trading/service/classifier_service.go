package service

import (
	"context"
	"sort"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/logger"
)

// ClassifierService partitions discovery candidates into entry opportunities
// (not currently held) and exit opportunities (currently held, judged by
// unrealized P&L).
type ClassifierService interface {
	Classify(ctx context.Context, candidates []dto.Candidate, portfolio *entity.Portfolio) (entries, exits []dto.Opportunity, err error)
}

type classifierService struct {
	log        *logger.Logger
	marketData repository.MarketDataRepository
}

// NewClassifierService creates a new opportunity classifier.
func NewClassifierService(log *logger.Logger, marketData repository.MarketDataRepository) ClassifierService {
	return &classifierService{log: log, marketData: marketData}
}

// Classify builds both opportunity lists, each sorted by urgency then by the
// magnitude of the triggering condition. That ordering decides which
// opportunities survive the orchestrator's top-K cut.
func (s *classifierService) Classify(ctx context.Context, candidates []dto.Candidate, portfolio *entity.Portfolio) ([]dto.Opportunity, []dto.Opportunity, error) {
	entries := s.classifyEntries(candidates, portfolio)
	exits := s.classifyExits(ctx, portfolio)

	sortOpportunities(entries)
	sortOpportunities(exits)
	return entries, exits, nil
}

// classifyEntries turns every not-held candidate into an entry opportunity.
func (s *classifierService) classifyEntries(candidates []dto.Candidate, portfolio *entity.Portfolio) []dto.Opportunity {
	entries := make([]dto.Opportunity, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		if portfolio.Holds(c.Symbol) {
			continue
		}

		reason, urgency := entryReason(c)
		entries = append(entries, dto.Opportunity{
			Symbol:           c.Symbol,
			Direction:        dto.DirectionEntry,
			Reason:           reason,
			Urgency:          urgency,
			TriggerMagnitude: c.CompositeScore,
			Candidate:        &c,
		})
	}
	return entries
}

// entryReason maps a candidate's scores to a reason and urgency.
func entryReason(c dto.Candidate) (string, string) {
	switch {
	case c.MomentumScore >= 70 && c.VolumeScore >= 70:
		return dto.ReasonBreakout, dto.UrgencyHigh
	case c.MomentumScore < 40 && c.CompositeScore >= 65:
		return dto.ReasonDip, dto.UrgencyMedium
	case c.CompositeScore >= 75:
		return dto.ReasonDiscovery, dto.UrgencyHigh
	default:
		return dto.ReasonDiscovery, dto.UrgencyLow
	}
}

// classifyExits evaluates every current holding against its unrealized
// percent gain. Holdings whose snapshot is unavailable, or that hit no
// threshold, produce no exit this cycle.
func (s *classifierService) classifyExits(ctx context.Context, portfolio *entity.Portfolio) []dto.Opportunity {
	exits := make([]dto.Opportunity, 0, len(portfolio.Holdings))
	for i := range portfolio.Holdings {
		h := portfolio.Holdings[i]

		snapshot, err := s.marketData.GetSnapshot(ctx, h.Symbol)
		if err != nil {
			s.log.Warn("Skipping holding in exit classification",
				logger.StringField("symbol", h.Symbol),
				logger.ErrorField(err),
			)
			continue
		}

		avgPrice, _ := h.AveragePrice.Float64()
		if avgPrice <= 0 {
			continue
		}
		percentGain := (snapshot.Price - avgPrice) / avgPrice * 100

		reason, urgency, ok := exitReason(percentGain)
		if !ok {
			continue
		}

		quantity, _ := h.Quantity.Float64()
		exits = append(exits, dto.Opportunity{
			Symbol:           h.Symbol,
			Direction:        dto.DirectionExit,
			Reason:           reason,
			Urgency:          urgency,
			TriggerMagnitude: abs(percentGain),
			HoldingID:        h.ID,
			Quantity:         quantity,
			AveragePrice:     avgPrice,
			CurrentPrice:     snapshot.Price,
			PercentGain:      percentGain,
		})
	}
	return exits
}

// exitReason maps an unrealized percent gain to a reason and urgency. The
// third return value is false when no threshold is hit.
func exitReason(percentGain float64) (string, string, bool) {
	switch {
	case percentGain > 50:
		return dto.ReasonProfitTarget, dto.UrgencyHigh, true
	case percentGain > 25:
		return dto.ReasonProfitTarget, dto.UrgencyMedium, true
	case percentGain < -20:
		return dto.ReasonRiskManagement, dto.UrgencyHigh, true
	case percentGain < -10:
		return dto.ReasonRiskManagement, dto.UrgencyMedium, true
	case percentGain > 10:
		return dto.ReasonResistance, dto.UrgencyLow, true
	default:
		return "", "", false
	}
}

func sortOpportunities(opportunities []dto.Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		ri, rj := dto.UrgencyRank(opportunities[i].Urgency), dto.UrgencyRank(opportunities[j].Urgency)
		if ri != rj {
			return ri > rj
		}
		return opportunities[i].TriggerMagnitude > opportunities[j].TriggerMagnitude
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
