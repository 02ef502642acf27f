package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/service"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
)

// TriggerHandler exposes the run-now triggers for the scheduled stages.
// Triggers share the stage's single-flight guard with the timer: a trigger
// while a run is active gets 409, never queued.
type TriggerHandler struct {
	cfg          *config.Config
	discoverySvc service.DiscoveryService
	recSvc       service.RecommendationService
	monitorSvc   service.PositionMonitorService
	logger       *logger.Logger
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(cfg *config.Config, discoverySvc service.DiscoveryService, recSvc service.RecommendationService, monitorSvc service.PositionMonitorService, logger *logger.Logger) *TriggerHandler {
	return &TriggerHandler{cfg: cfg, discoverySvc: discoverySvc, recSvc: recSvc, monitorSvc: monitorSvc, logger: logger}
}

// RegisterRoutes registers the trigger routes to the Echo group.
func (h *TriggerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/discovery", h.TriggerDiscovery)
	g.POST("/recommendations", h.TriggerRecommendations)
	g.POST("/monitor", h.TriggerMonitor)
}

// TriggerDiscovery godoc
// @Summary Run a discovery sweep now
// @Tags triggers
// @Produce  json
// @Param   profile  query    string false    "Strategy profile (defaults to configured)"
// @Success 200 {object} dto.TriggerResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /triggers/discovery [post]
func (h *TriggerHandler) TriggerDiscovery(c echo.Context) error {
	profile := c.QueryParam("profile")
	if profile == "" {
		profile = h.cfg.Discovery.DefaultProfile
	}

	candidates, err := h.discoverySvc.Run(c.Request().Context(), profile)
	if err != nil {
		return h.triggerError(c, common.StageDiscovery, err)
	}
	return c.JSON(http.StatusOK, dto.TriggerResponse{
		Stage:  common.StageDiscovery,
		Result: candidates,
	})
}

// TriggerRecommendations godoc
// @Summary Run a recommendation pass now
// @Tags triggers
// @Produce  json
// @Param   portfolio_id  query    int true    "Portfolio ID"
// @Success 200 {object} dto.TriggerResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /triggers/recommendations [post]
func (h *TriggerHandler) TriggerRecommendations(c echo.Context) error {
	portfolioID, err := strconv.ParseUint(c.QueryParam("portfolio_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid portfolio_id"})
	}

	result, err := h.recSvc.GenerateRecommendations(c.Request().Context(), uint(portfolioID), h.cfg.Recommendations.MaxEntries, h.cfg.Recommendations.MaxExits)
	if err != nil {
		return h.triggerError(c, common.StageRecommendations, err)
	}
	return c.JSON(http.StatusOK, dto.TriggerResponse{
		Stage:  common.StageRecommendations,
		Result: result,
	})
}

// TriggerMonitor godoc
// @Summary Run a position monitor sweep now
// @Tags triggers
// @Produce  json
// @Success 200 {object} dto.TriggerResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /triggers/monitor [post]
func (h *TriggerHandler) TriggerMonitor(c echo.Context) error {
	exits, err := h.monitorSvc.Sweep(c.Request().Context())
	if err != nil {
		return h.triggerError(c, common.StagePositionMonitor, err)
	}
	return c.JSON(http.StatusOK, dto.TriggerResponse{
		Stage:  common.StagePositionMonitor,
		Result: exits,
	})
}

func (h *TriggerHandler) triggerError(c echo.Context, stage string, err error) error {
	if errors.Is(err, dto.ErrRunInProgress) {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	h.logger.Error("Manual trigger failed",
		logger.StringField("stage", stage),
		logger.ErrorField(err),
	)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}
