package handlers

import (
	"errors"
	"net/http"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
)

// PortfolioHandler отдает портфель и дашборд пользователя
//
// Endpoints:
// - GET /api/v1/portfolio?mode=live|paper
// - GET /api/v1/dashboard?mode=live|paper&timeframe=1h|3h|1d|1w|1m
type PortfolioHandler struct {
	portfolio PortfolioAPI
	dashboard DashboardAPI
}

// NewPortfolioHandler создает новый PortfolioHandler
func NewPortfolioHandler(portfolio PortfolioAPI, dashboard DashboardAPI) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio: portfolio,
		dashboard: dashboard,
	}
}

// queryMode читает режим торговли из query параметров.
// Всё, что не paper - live.
func queryMode(r *http.Request) string {
	if r.URL.Query().Get("mode") == models.ModePaper {
		return models.ModePaper
	}
	return models.ModeLive
}

// GetPortfolio возвращает текущий портфель пользователя
// GET /api/v1/portfolio?mode=live
//
// Деградации (нет подключения, нечитаемые ключи) приходят внутри ответа
// в поле error: фронтенд показывает их как состояние страницы, а не как
// сбой запроса.
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, err := h.portfolio.GetPortfolio(r.Context(), userID, queryMode(r))
	if err != nil {
		var exchErr *exchange.ExchangeError
		if errors.As(err, &exchErr) {
			respondWithError(w, http.StatusBadGateway, "Exchange request failed", exchErr.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load portfolio", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// GetDashboard возвращает сводку дашборда
// GET /api/v1/dashboard?mode=live&timeframe=1d
func (h *PortfolioHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, err := h.dashboard.GetDashboard(r.Context(), userID, queryMode(r), r.URL.Query().Get("timeframe"))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load dashboard", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}
