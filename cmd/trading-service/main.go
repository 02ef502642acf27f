package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-paper-trader/internal/trading/config"
	delivery "golang-paper-trader/internal/trading/delivery/http"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/internal/trading/service"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/postgres"
	"golang-paper-trader/pkg/redis"
	"golang-paper-trader/pkg/telegram"

	"google.golang.org/genai"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the trading service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Trading Service", zap.String("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	portfolioRepo := repository.NewPortfolioRepository(db.DB)
	tradeRepo := repository.NewTradeRepository(db.DB)
	recRepo := repository.NewRecommendationRepository(db.DB)
	marketDataRepo := repository.NewMarketDataRepository(cfg, appLogger, redisClient.Client)

	genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", zap.Error(err))
	}
	verdictRepo, err := repository.NewGeminiVerdictRepository(cfg, appLogger, genAiClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize verdict repository", zap.Error(err))
	}

	var notifier telegram.Notifier = telegram.NoopNotifier{}
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
	}

	// Initialize services
	dailyLossBreaker := service.NewDailyLossBreaker(cfg.Risk.MaxDailyLossFraction)
	riskSvc := service.NewRiskService(cfg, appLogger, marketDataRepo, tradeRepo, dailyLossBreaker)
	executionSvc := service.NewExecutionService(cfg, appLogger, portfolioRepo, riskSvc, notifier)
	discoverySvc := service.NewDiscoveryService(cfg, appLogger, marketDataRepo)
	classifierSvc := service.NewClassifierService(appLogger, marketDataRepo)
	recSvc := service.NewRecommendationService(cfg, appLogger, discoverySvc, classifierSvc, portfolioRepo, recRepo, verdictRepo, riskSvc, notifier)
	monitorSvc := service.NewPositionMonitorService(cfg, appLogger, portfolioRepo, marketDataRepo, riskSvc, executionSvc, notifier)

	// Start the stage scheduler
	schedulerSvc := service.NewSchedulerService(cfg, appLogger, discoverySvc, recSvc, monitorSvc, portfolioRepo, recRepo)
	schedulerSvc.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	portfolioHandler := delivery.NewPortfolioHandler(portfolioRepo, tradeRepo, riskSvc, appLogger)
	portfoliosGroup := apiV1.Group("/portfolios")
	portfolioHandler.RegisterRoutes(portfoliosGroup)

	tradeHandler := delivery.NewTradeHandler(portfolioRepo, riskSvc, executionSvc, appLogger)
	tradeHandler.RegisterRoutes(portfoliosGroup)

	recHandler := delivery.NewRecommendationHandler(recRepo, portfolioRepo, riskSvc, executionSvc, appLogger)
	recsGroup := apiV1.Group("/recommendations")
	recHandler.RegisterRoutes(recsGroup)

	triggerHandler := delivery.NewTriggerHandler(cfg, discoverySvc, recSvc, monitorSvc, appLogger)
	triggersGroup := apiV1.Group("/triggers")
	triggerHandler.RegisterRoutes(triggersGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	// Let scheduled jobs and in-flight trades finish before closing the DB
	<-schedulerSvc.Stop().Done()
	executionSvc.Drain()

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "trading-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-trading.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trading-service CLI: %s\n", err)
		os.Exit(1)
	}
}
