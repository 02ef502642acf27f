package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
)

// SchedulerService drives the three pipeline stages on their own timers:
// discovery and recommendations on hours-scale crons, the position monitor
// on a minutes-scale cron. Each stage's single-flight guard lives in the
// stage service itself, shared with the HTTP run-now triggers.
type SchedulerService interface {
	Start(ctx context.Context)
	Stop() context.Context
}

type schedulerService struct {
	cfg           *config.Config
	log           *logger.Logger
	cron          *cron.Cron
	discoverySvc  DiscoveryService
	recSvc        RecommendationService
	monitorSvc    PositionMonitorService
	portfolioRepo repository.PortfolioRepository
	recRepo       repository.RecommendationRepository
}

// NewSchedulerService creates the stage scheduler.
func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	discoverySvc DiscoveryService,
	recSvc RecommendationService,
	monitorSvc PositionMonitorService,
	portfolioRepo repository.PortfolioRepository,
	recRepo repository.RecommendationRepository,
) SchedulerService {
	return &schedulerService{
		cfg:           cfg,
		log:           log,
		cron:          cron.New(),
		discoverySvc:  discoverySvc,
		recSvc:        recSvc,
		monitorSvc:    monitorSvc,
		portfolioRepo: portfolioRepo,
		recRepo:       recRepo,
	}
}

// Start registers the stage crons and runs them until ctx is done.
func (s *schedulerService) Start(ctx context.Context) {
	s.mustAdd(s.cfg.Discovery.CronExpression, common.StageDiscovery, func() {
		s.runDiscovery(ctx)
	})
	s.mustAdd(s.cfg.Recommendations.CronExpression, common.StageRecommendations, func() {
		s.runRecommendations(ctx)
	})
	s.mustAdd(s.cfg.Monitor.CronExpression, common.StagePositionMonitor, func() {
		s.runMonitor(ctx)
	})
	// Housekeeping: purge expired recommendation rows nightly.
	s.mustAdd("@daily", "recommendation-cleanup", func() {
		s.cleanupRecommendations(ctx)
	})

	s.cron.Start()
	s.log.Info("Scheduler started",
		logger.StringField("discovery_cron", s.cfg.Discovery.CronExpression),
		logger.StringField("recommendations_cron", s.cfg.Recommendations.CronExpression),
		logger.StringField("monitor_cron", s.cfg.Monitor.CronExpression),
	)
}

// Stop halts the cron and returns a context that is done once all running
// jobs have finished.
func (s *schedulerService) Stop() context.Context {
	return s.cron.Stop()
}

func (s *schedulerService) mustAdd(spec, stage string, fn func()) {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		s.log.Fatal("Invalid cron expression",
			logger.StringField("stage", stage),
			logger.StringField("spec", spec),
			logger.ErrorField(err),
		)
	}
}

func (s *schedulerService) runDiscovery(ctx context.Context) {
	if _, err := s.discoverySvc.Run(ctx, s.cfg.Discovery.DefaultProfile); err != nil {
		s.logStageError(common.StageDiscovery, err)
	}
}

func (s *schedulerService) runRecommendations(ctx context.Context) {
	portfolios, err := s.portfolioRepo.FindAll(ctx)
	if err != nil {
		s.log.Error("Failed to list portfolios for recommendation run", logger.ErrorField(err))
		return
	}
	for _, p := range portfolios {
		_, err := s.recSvc.GenerateRecommendations(ctx, p.ID, s.cfg.Recommendations.MaxEntries, s.cfg.Recommendations.MaxExits)
		if err != nil {
			s.logStageError(common.StageRecommendations, err)
		}
	}
}

func (s *schedulerService) runMonitor(ctx context.Context) {
	if _, err := s.monitorSvc.Sweep(ctx); err != nil {
		s.logStageError(common.StagePositionMonitor, err)
	}
}

func (s *schedulerService) cleanupRecommendations(ctx context.Context) {
	removed, err := s.recRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to purge expired recommendations", logger.ErrorField(err))
		return
	}
	if removed > 0 {
		s.log.Info("Purged expired recommendations", logger.IntField("removed", int(removed)))
	}
}

// logStageError downgrades the expected single-flight skip to a debug line.
func (s *schedulerService) logStageError(stage string, err error) {
	if errors.Is(err, dto.ErrRunInProgress) {
		s.log.Debug("Skipping scheduled run, previous run still active", logger.StringField("stage", stage))
		return
	}
	s.log.Error("Scheduled stage run failed",
		logger.StringField("stage", stage),
		logger.ErrorField(err),
	)
}
