package handlers

import (
	"errors"
	"net/http"
	"strings"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
)

// MarketHandler отдает публичные рыночные данные.
// Endpoint за auth middleware, но биржевые ключи не используются.
//
// Endpoints:
// - GET /api/v1/market/tickers?exchange=binance&symbols=BTC/USDT,ETH/USDT&mode=live|paper
type MarketHandler struct {
	market MarketAPI
}

// NewMarketHandler создает новый MarketHandler
func NewMarketHandler(market MarketAPI) *MarketHandler {
	return &MarketHandler{market: market}
}

// GetTickers возвращает тикеры биржи по списку символов
// GET /api/v1/market/tickers?exchange=binance&symbols=BTC/USDT,ETH/USDT
func (h *MarketHandler) GetTickers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	q := r.URL.Query()

	exchangeID := strings.ToLower(strings.TrimSpace(q.Get("exchange")))
	if exchangeID == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter exchange is required", "")
		return
	}

	var symbols []string
	for _, symbol := range strings.Split(q.Get("symbols"), ",") {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			symbols = append(symbols, strings.ToUpper(symbol))
		}
	}
	if len(symbols) == 0 {
		respondWithError(w, http.StatusBadRequest, "Query parameter symbols is required", "")
		return
	}

	sandbox := queryMode(r) == models.ModePaper
	tickers, err := h.market.MarketTickers(r.Context(), exchangeID, sandbox, symbols)
	if err != nil {
		switch {
		case errors.Is(err, exchange.ErrUnsupportedExchange):
			respondWithError(w, http.StatusBadRequest, "Unknown exchange", err.Error())
		case errors.Is(err, exchange.ErrSandboxUnsupported):
			respondWithError(w, http.StatusBadRequest, "Exchange has no sandbox", err.Error())
		default:
			respondWithError(w, http.StatusBadGateway, "Exchange request failed", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"tickers": tickers})
}
