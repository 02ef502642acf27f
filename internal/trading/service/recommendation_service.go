package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/telegram"
)

// RecommendationService orchestrates one discovery-to-recommendation pass:
// top-K entry and exit opportunities are bundled with context, sent to the
// verdict generator, and actionable verdicts are persisted with an expiry.
// Runs are single-flight for the whole system to bound concurrent reasoning
// calls and avoid duplicate cash-affecting verdicts.
type RecommendationService interface {
	GenerateRecommendations(ctx context.Context, portfolioID uint, maxEntries, maxExits int) (*dto.GenerateResult, error)
}

type recommendationService struct {
	cfg           *config.Config
	log           *logger.Logger
	discoverySvc  DiscoveryService
	classifierSvc ClassifierService
	portfolioRepo repository.PortfolioRepository
	recRepo       repository.RecommendationRepository
	verdictRepo   repository.VerdictRepository
	riskSvc       RiskService
	notifier      telegram.Notifier
	inFlight      *semaphore.Weighted
}

// NewRecommendationService creates a new recommendation orchestrator.
func NewRecommendationService(
	cfg *config.Config,
	log *logger.Logger,
	discoverySvc DiscoveryService,
	classifierSvc ClassifierService,
	portfolioRepo repository.PortfolioRepository,
	recRepo repository.RecommendationRepository,
	verdictRepo repository.VerdictRepository,
	riskSvc RiskService,
	notifier telegram.Notifier,
) RecommendationService {
	return &recommendationService{
		cfg:           cfg,
		log:           log,
		discoverySvc:  discoverySvc,
		classifierSvc: classifierSvc,
		portfolioRepo: portfolioRepo,
		recRepo:       recRepo,
		verdictRepo:   verdictRepo,
		riskSvc:       riskSvc,
		notifier:      notifier,
		inFlight:      semaphore.NewWeighted(1),
	}
}

// GenerateRecommendations runs one orchestration pass. A concurrent trigger
// while a run is active gets dto.ErrRunInProgress, never queued.
func (s *recommendationService) GenerateRecommendations(ctx context.Context, portfolioID uint, maxEntries, maxExits int) (*dto.GenerateResult, error) {
	if !s.inFlight.TryAcquire(1) {
		return nil, dto.ErrRunInProgress
	}
	defer s.inFlight.Release(1)

	portfolio, err := s.portfolioRepo.FindByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	candidates, ok := s.discoverySvc.CachedCandidates(s.cfg.Discovery.DefaultProfile)
	if !ok {
		candidates, err = s.discoverySvc.Discover(ctx, s.cfg.Discovery.DefaultProfile)
		if err != nil {
			return nil, err
		}
	}

	entries, exits, err := s.classifierSvc.Classify(ctx, candidates, portfolio)
	if err != nil {
		return nil, err
	}

	result := &dto.GenerateResult{
		TotalOpportunities: len(entries) + len(exits),
	}

	selected := make([]dto.Opportunity, 0, maxEntries+maxExits)
	selected = append(selected, truncate(entries, maxEntries)...)
	selected = append(selected, truncate(exits, maxExits)...)
	result.TotalAnalyzed = len(selected)

	cash, _ := portfolio.Cash.Float64()
	totalValue, _ := s.riskSvc.PortfolioValue(ctx, portfolio).Float64()

	for i := range selected {
		opp := &selected[i]
		rec, actionable, err := s.analyzeOpportunity(ctx, portfolio, opp, cash, totalValue)
		if err != nil {
			// Failed is an informational subset of AIRejected, preserving
			// totalAnalyzed = accepted + aiRejected.
			result.Failed++
			result.AIRejected++
			continue
		}
		if !actionable {
			result.AIRejected++
			continue
		}
		result.Accepted++
		result.RecommendationIDs = append(result.RecommendationIDs, rec.ID)
	}

	s.log.Info("Recommendation run completed",
		logger.IntField("portfolio_id", int(portfolioID)),
		logger.IntField("total_opportunities", result.TotalOpportunities),
		logger.IntField("total_analyzed", result.TotalAnalyzed),
		logger.IntField("accepted", result.Accepted),
		logger.IntField("ai_rejected", result.AIRejected),
		logger.IntField("failed", result.Failed),
	)
	return result, nil
}

// analyzeOpportunity generates and persists the verdict for one opportunity.
// Any failure (timeout, error, invalid verdict) skips the asset without
// aborting the batch.
func (s *recommendationService) analyzeOpportunity(ctx context.Context, portfolio *entity.Portfolio, opp *dto.Opportunity, cash, totalValue float64) (*entity.Recommendation, bool, error) {
	bundle := s.buildContextBundle(opp, cash, totalValue)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Recommendations.VerdictTimeout)
	defer cancel()

	verdict, err := s.verdictRepo.GenerateVerdict(callCtx, bundle)
	if err != nil {
		s.log.Warn("Verdict generation failed, skipping asset",
			logger.StringField("symbol", opp.Symbol),
			logger.ErrorField(err),
		)
		return nil, false, err
	}

	if verdict.Action == common.VerdictActionHold || verdict.Confidence < s.cfg.Recommendations.MinConfidence {
		s.log.Debug("Verdict not actionable",
			logger.StringField("symbol", opp.Symbol),
			logger.StringField("action", verdict.Action),
			logger.Float64Field("confidence", verdict.Confidence),
		)
		return nil, false, nil
	}

	rec, err := s.persistRecommendation(ctx, portfolio.ID, opp, verdict)
	if err != nil {
		s.log.Error("Failed to persist recommendation",
			logger.StringField("symbol", opp.Symbol),
			logger.ErrorField(err),
		)
		return nil, false, err
	}
	return rec, true, nil
}

func (s *recommendationService) buildContextBundle(opp *dto.Opportunity, cash, totalValue float64) *dto.ContextBundle {
	bundle := &dto.ContextBundle{
		Symbol:     opp.Symbol,
		Direction:  opp.Direction,
		Reason:     opp.Reason,
		Urgency:    opp.Urgency,
		CashUSD:    cash,
		TotalValue: totalValue,
	}
	if opp.Candidate != nil {
		bundle.Snapshot = opp.Candidate.Snapshot
	} else {
		bundle.Snapshot = dto.Snapshot{Symbol: opp.Symbol, Price: opp.CurrentPrice}
		bundle.Holding = &dto.HoldingInfo{
			Quantity:     opp.Quantity,
			AveragePrice: opp.AveragePrice,
			PercentGain:  opp.PercentGain,
		}
	}
	return bundle
}

func (s *recommendationService) persistRecommendation(ctx context.Context, portfolioID uint, opp *dto.Opportunity, verdict *dto.Verdict) (*entity.Recommendation, error) {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &entity.Recommendation{
		ID:                   uuid.NewString(),
		PortfolioID:          portfolioID,
		Symbol:               opp.Symbol,
		Direction:            opp.Direction,
		Action:               verdict.Action,
		Confidence:           verdict.Confidence,
		EntryPrice:           decimal.NewFromFloat(verdict.EntryPrice),
		StopLoss:             decimal.NewFromFloat(verdict.StopLoss),
		PositionSizeFraction: verdict.PositionSizeFraction,
		RiskLevel:            verdict.RiskLevel,
		Reasoning:            verdict.Reasoning,
		Sources:              pq.StringArray(verdict.Sources),
		Verdict:              datatypes.JSON(verdictJSON),
		ExpiresAt:            now.Add(s.cfg.Recommendations.TTL),
	}
	if err := s.recRepo.Create(ctx, rec); err != nil {
		return nil, err
	}

	msg := telegram.FormatRecommendationMessage(rec.Symbol, rec.Action, rec.Confidence, verdict.EntryPrice, verdict.StopLoss, rec.ExpiresAt)
	if err := s.notifier.SendMessage(msg); err != nil {
		s.log.Warn("Failed to send recommendation notification", logger.ErrorField(err))
	}
	return rec, nil
}

func truncate(opportunities []dto.Opportunity, max int) []dto.Opportunity {
	if max >= 0 && len(opportunities) > max {
		return opportunities[:max]
	}
	return opportunities
}
