package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/internal/trading/service"
	"golang-paper-trader/pkg/common"
	"golang-paper-trader/pkg/logger"
	"golang-paper-trader/pkg/utils"
)

// RecommendationHandler serves active recommendations and executes them
// through the automated risk gate.
type RecommendationHandler struct {
	recRepo       repository.RecommendationRepository
	portfolioRepo repository.PortfolioRepository
	riskSvc       service.RiskService
	executionSvc  service.ExecutionService
	logger        *logger.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(recRepo repository.RecommendationRepository, portfolioRepo repository.PortfolioRepository, riskSvc service.RiskService, executionSvc service.ExecutionService, logger *logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recRepo: recRepo, portfolioRepo: portfolioRepo, riskSvc: riskSvc, executionSvc: executionSvc, logger: logger}
}

// RegisterRoutes registers the recommendation routes to the Echo group.
func (h *RecommendationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetActiveRecommendations)
	g.POST("/:id/execute", h.ExecuteRecommendation)
}

// GetActiveRecommendations godoc
// @Summary Get active recommendations
// @Description Lists non-expired recommendations for a portfolio
// @Tags recommendations
// @Produce  json
// @Param   portfolio_id  query    int true    "Portfolio ID"
// @Success 200 {array} entity.Recommendation
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /recommendations [get]
func (h *RecommendationHandler) GetActiveRecommendations(c echo.Context) error {
	portfolioID, err := strconv.ParseUint(c.QueryParam("portfolio_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid portfolio_id"})
	}

	recs, err := h.recRepo.FindActive(c.Request().Context(), uint(portfolioID))
	if err != nil {
		h.logger.Error("Failed to get recommendations", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get recommendations"})
	}
	return c.JSON(http.StatusOK, recs)
}

// ExecuteRecommendation godoc
// @Summary Execute a recommendation
// @Description Turns an active recommendation into a trade through the
// @Description automated risk gate. Rejected trades return the risk result.
// @Tags recommendations
// @Produce  json
// @Param   id  path    string true    "Recommendation ID"
// @Success 201 {object} dto.TradeDecisionResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.TradeDecisionResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /recommendations/{id}/execute [post]
func (h *RecommendationHandler) ExecuteRecommendation(c echo.Context) error {
	ctx := c.Request().Context()

	rec, err := h.recRepo.FindActiveByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, dto.ErrRecommendationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	portfolio, err := h.portfolioRepo.FindByID(ctx, rec.PortfolioID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	req, err := h.buildTradeRequest(ctx, rec, portfolio)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	check, err := h.riskSvc.Validate(ctx, req, portfolio, common.RiskModeAutomated)
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

	trade, err := h.executionSvc.Execute(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrInsufficientFunds), errors.Is(err, dto.ErrInsufficientQuantity):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		default:
			h.logger.Error("Recommendation execution failed", logger.ErrorField(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, dto.TradeDecisionResponse{
		Status:    dto.TradeStatusExecuted,
		RiskCheck: check,
		Trade:     trade,
	})
}

// buildTradeRequest sizes the trade from the verdict's position size
// fraction for a BUY, or from the held quantity for a SELL.
func (h *RecommendationHandler) buildTradeRequest(ctx context.Context, rec *entity.Recommendation, portfolio *entity.Portfolio) (*dto.TradeRequest, error) {
	entryPrice, _ := rec.EntryPrice.Float64()
	if entryPrice <= 0 {
		return nil, errors.New("recommendation has no usable entry price")
	}

	req := &dto.TradeRequest{
		PortfolioID:      portfolio.ID,
		Symbol:           rec.Symbol,
		Price:            entryPrice,
		Reasoning:        rec.Reasoning,
		RecommendationID: utils.ToPointer(rec.ID),
		ExecutionMethod:  common.ExecutionMethodAuto,
		InitiatedBy:      "recommendation",
	}

	switch rec.Action {
	case common.TradeSideBuy:
		req.Side = common.TradeSideBuy
		fraction := rec.PositionSizeFraction
		if fraction <= 0 {
			fraction = defaultPositionFraction
		}
		totalValue, _ := h.riskSvc.PortfolioValue(ctx, portfolio).Float64()
		req.Quantity = totalValue * fraction / entryPrice

		if stopLoss, _ := rec.StopLoss.Float64(); stopLoss > 0 {
			req.StopLoss = utils.ToPointer(stopLoss)
		}
		var verdict dto.Verdict
		if err := json.Unmarshal(rec.Verdict, &verdict); err == nil && len(verdict.TakeProfitLevels) > 0 {
			if tp := verdict.TakeProfitLevels[0]; tp > 0 {
				req.TakeProfit = utils.ToPointer(tp)
			}
		}
	case common.TradeSideSell:
		holding := portfolio.Holding(rec.Symbol)
		if holding == nil {
			return nil, dto.ErrInsufficientQuantity
		}
		req.Side = common.TradeSideSell
		req.Quantity, _ = holding.Quantity.Float64()
		req.Exit = true
	default:
		return nil, errors.New("recommendation action is not executable")
	}
	return req, nil
}

// defaultPositionFraction sizes BUY orders when the verdict omits one.
const defaultPositionFraction = 0.02
