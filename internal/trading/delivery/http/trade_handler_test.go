package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-paper-trader/internal/entity"
	"golang-paper-trader/internal/trading/dto"
)

func submitTrade(t *testing.T, h *TradeHandler, portfolioID, body string) (*httptest.ResponseRecorder, dto.TradeDecisionResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(portfolioID)

	require.NoError(t, h.SubmitTrade(c))

	var decision dto.TradeDecisionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &decision)
	return rec, decision
}

func TestSubmitTradeTwoPhaseConfirmation(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedPortfolio(t, 10000)
	f.marketData.set(dto.Snapshot{Symbol: "BTC", Price: 100, Volume24h: 5_000_000})
	h := NewTradeHandler(f.portfolioRepo, f.riskSvc, f.executionSvc, f.log)

	// Phase 1: a BUY without a stop-loss comes back unexecuted.
	body := `{"symbol": "BTC", "side": "BUY", "quantity": 1, "price": 100}`
	rec, decision := submitTrade(t, h, "1", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.TradeStatusConfirmationRequired, decision.Status)
	require.NotNil(t, decision.RiskCheck)
	assert.Contains(t, decision.RiskCheck.Warnings, "no stop-loss set")

	portfolio, err := f.portfolioRepo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, portfolio.Cash.Equal(decimal.NewFromFloat(10000)), "phase 1 must not execute")

	// Phase 2: resubmission with the warnings acknowledged executes.
	body = `{"symbol": "BTC", "side": "BUY", "quantity": 1, "price": 100, "confirm_warnings": true}`
	rec, decision = submitTrade(t, h, "1", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, dto.TradeStatusExecuted, decision.Status)
	require.NotNil(t, decision.Trade)

	portfolio, err = f.portfolioRepo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, portfolio.Cash.Equal(decimal.NewFromFloat(9899.80)), "cash %s", portfolio.Cash)
}

func TestSubmitTradeRejectedByRiskGate(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedPortfolio(t, 10000)
	f.marketData.set(dto.Snapshot{Symbol: "ILLIQ", Price: 100, Volume24h: 10_000})
	h := NewTradeHandler(f.portfolioRepo, f.riskSvc, f.executionSvc, f.log)

	body := `{"symbol": "ILLIQ", "side": "BUY", "quantity": 1, "price": 100}`
	rec, decision := submitTrade(t, h, "1", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, dto.TradeStatusRejected, decision.Status)
	require.NotNil(t, decision.RiskCheck)
	assert.Contains(t, decision.RiskCheck.Reason, "liquidity")
}

func TestSubmitTradeSellOfHeldPositionSkipsConfirmation(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedPortfolio(t, 1000, entity.Holding{
		Symbol:       "BTC",
		Quantity:     decimal.NewFromFloat(2),
		AveragePrice: decimal.NewFromFloat(90),
	})
	f.marketData.set(dto.Snapshot{Symbol: "BTC", Price: 100, Volume24h: 5_000_000})
	h := NewTradeHandler(f.portfolioRepo, f.riskSvc, f.executionSvc, f.log)

	body := `{"symbol": "BTC", "side": "SELL", "quantity": 2, "price": 100}`
	rec, decision := submitTrade(t, h, "1", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, dto.TradeStatusExecuted, decision.Status)
}

func TestSubmitTradeValidation(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedPortfolio(t, 10000)
	h := NewTradeHandler(f.portfolioRepo, f.riskSvc, f.executionSvc, f.log)

	tests := []struct {
		name string
		id   string
		body string
		code int
	}{
		{"bad portfolio id", "abc", `{"symbol": "BTC", "side": "BUY", "quantity": 1, "price": 100}`, http.StatusBadRequest},
		{"bad side", "1", `{"symbol": "BTC", "side": "LONG", "quantity": 1, "price": 100}`, http.StatusBadRequest},
		{"zero quantity", "1", `{"symbol": "BTC", "side": "BUY", "quantity": 0, "price": 100}`, http.StatusBadRequest},
		{"unknown portfolio", "99", `{"symbol": "BTC", "side": "BUY", "quantity": 1, "price": 100}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := submitTrade(t, h, tt.id, tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestSubmitTradeInsufficientQuantity(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedPortfolio(t, 1000)
	f.marketData.set(dto.Snapshot{Symbol: "BTC", Price: 100, Volume24h: 5_000_000})
	h := NewTradeHandler(f.portfolioRepo, f.riskSvc, f.executionSvc, f.log)

	// Selling an asset the portfolio does not hold.
	body := `{"symbol": "BTC", "side": "SELL", "quantity": 1, "price": 100}`
	rec, _ := submitTrade(t, h, "1", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
