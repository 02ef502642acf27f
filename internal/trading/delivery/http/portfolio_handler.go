package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/internal/trading/repository"
	"golang-paper-trader/internal/trading/service"
	"golang-paper-trader/pkg/logger"
)

// PortfolioHandler handles HTTP requests for portfolios.
type PortfolioHandler struct {
	portfolioRepo repository.PortfolioRepository
	tradeRepo     repository.TradeRepository
	riskSvc       service.RiskService
	logger        *logger.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioRepo repository.PortfolioRepository, tradeRepo repository.TradeRepository, riskSvc service.RiskService, logger *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolioRepo: portfolioRepo, tradeRepo: tradeRepo, riskSvc: riskSvc, logger: logger}
}

// RegisterRoutes registers the portfolio routes to the Echo group.
func (h *PortfolioHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreatePortfolio)
	g.GET("", h.GetAllPortfolios)
	g.GET("/:id", h.GetPortfolioByID)
	g.GET("/:id/trades", h.GetTrades)
}

// CreatePortfolio godoc
// @Summary Create a new portfolio
// @Description Create a simulated portfolio with an initial cash balance
// @Tags portfolios
// @Accept  json
// @Produce  json
// @Param   portfolio  body    dto.CreatePortfolioRequest   true    "Portfolio to create"
// @Success 201 {object} entity.Portfolio
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /portfolios [post]
func (h *PortfolioHandler) CreatePortfolio(c echo.Context) error {
	var req dto.CreatePortfolioRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if req.Name == "" || req.InitialCash < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Name required and initial cash must be non-negative"})
	}

	portfolio := &entity.Portfolio{
		Name: req.Name,
		Cash: decimal.NewFromFloat(req.InitialCash),
	}
	if err := h.portfolioRepo.Create(c.Request().Context(), portfolio); err != nil {
		h.logger.Error("Failed to create portfolio", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, portfolio)
}

// GetPortfolioByID godoc
// @Summary Get a portfolio by ID
// @Description Get a portfolio with holdings and its total market value
// @Tags portfolios
// @Produce  json
// @Param   id  path    int true    "Portfolio ID"
// @Success 200 {object} dto.PortfolioResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /portfolios/{id} [get]
func (h *PortfolioHandler) GetPortfolioByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid portfolio ID"})
	}

	portfolio, err := h.portfolioRepo.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		if err == dto.ErrPortfolioNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	totalValue, _ := h.riskSvc.PortfolioValue(c.Request().Context(), portfolio).Float64()
	return c.JSON(http.StatusOK, dto.PortfolioResponse{
		Portfolio:  portfolio,
		TotalValue: totalValue,
	})
}

// GetAllPortfolios godoc
// @Summary Get all portfolios
// @Tags portfolios
// @Produce  json
// @Success 200 {array} entity.Portfolio
// @Failure 500 {object} dto.ErrorResponse
// @Router /portfolios [get]
func (h *PortfolioHandler) GetAllPortfolios(c echo.Context) error {
	portfolios, err := h.portfolioRepo.FindAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get all portfolios", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get portfolios"})
	}
	return c.JSON(http.StatusOK, portfolios)
}

// GetTrades godoc
// @Summary Get a portfolio's trade history
// @Tags portfolios
// @Produce  json
// @Param   id  path    int true    "Portfolio ID"
// @Param   limit  query    int false    "Max rows"
// @Success 200 {array} entity.Trade
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /portfolios/{id}/trades [get]
func (h *PortfolioHandler) GetTrades(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid portfolio ID"})
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	trades, err := h.tradeRepo.FindByPortfolio(c.Request().Context(), uint(id), limit)
	if err != nil {
		h.logger.Error("Failed to get trades", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get trades"})
	}
	return c.JSON(http.StatusOK, trades)
}
