package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/internal/trading/service"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
)

// TradeHandler handles manual trade requests with the two-phase
// confirmation protocol: a request that raises warnings is returned
// unexecuted, and the caller resubmits with confirm_warnings to proceed.
type TradeHandler struct {
	portfolioRepo repository.PortfolioRepository
	riskSvc       service.RiskService
	executionSvc  service.ExecutionService
	logger        *logger.Logger
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(portfolioRepo repository.PortfolioRepository, riskSvc service.RiskService, executionSvc service.ExecutionService, logger *logger.Logger) *TradeHandler {
	return &TradeHandler{portfolioRepo: portfolioRepo, riskSvc: riskSvc, executionSvc: executionSvc, logger: logger}
}

// RegisterRoutes registers the trade routes to the Echo group.
func (h *TradeHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:id/trades", h.SubmitTrade)
}

// SubmitTrade godoc
// @Summary Submit a manual trade
// @Description Validates and executes a manual trade. A BUY with warnings is
// @Description returned with status confirmation_required and must be
// @Description resubmitted with confirm_warnings=true. Sells of an open
// @Description position never require confirmation.
// @Tags trades
// @Accept  json
// @Produce  json
// @Param   id  path    int true    "Portfolio ID"
// @Param   trade  body    dto.TradeRequest   true    "Trade to submit"
// @Success 200 {object} dto.TradeDecisionResponse
// @Success 201 {object} dto.TradeDecisionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.TradeDecisionResponse
// @Router /portfolios/{id}/trades [post]
func (h *TradeHandler) SubmitTrade(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid portfolio ID"})
	}

	var req dto.TradeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	req.PortfolioID = uint(id)
	req.ExecutionMethod = common.ExecutionMethodManual
	if req.InitiatedBy == "" {
		req.InitiatedBy = "api"
	}
	if req.Side != common.TradeSideBuy && req.Side != common.TradeSideSell {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Side must be BUY or SELL"})
	}
	if req.Quantity <= 0 || req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Quantity and price must be positive"})
	}

	ctx := c.Request().Context()
	portfolio, err := h.portfolioRepo.FindByID(ctx, req.PortfolioID)
	if err != nil {
		if errors.Is(err, dto.ErrPortfolioNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	// Selling an open position is risk-reducing and exempt from confirmation.
	if req.Side == common.TradeSideSell && portfolio.Holds(req.Symbol) {
		req.Exit = true
	}

	check, err := h.riskSvc.Validate(ctx, &req, portfolio, common.RiskModeManual)
	if err != nil {
		h.logger.Error("Risk validation failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if !check.Allowed {
		return c.JSON(http.StatusUnprocessableEntity, dto.TradeDecisionResponse{
			Status:    dto.TradeStatusRejected,
			RiskCheck: check,
		})
	}
	if len(check.Warnings) > 0 && !req.ConfirmWarnings && !req.Exit {
		return c.JSON(http.StatusOK, dto.TradeDecisionResponse{
			Status:    dto.TradeStatusConfirmationRequired,
			RiskCheck: check,
		})
	}

	trade, err := h.executionSvc.Execute(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrInsufficientFunds), errors.Is(err, dto.ErrInsufficientQuantity):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		default:
			h.logger.Error("Trade execution failed", logger.ErrorField(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, dto.TradeDecisionResponse{
		Status:    dto.TradeStatusExecuted,
		RiskCheck: check,
		Trade:     trade,
	})
}
