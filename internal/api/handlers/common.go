// Package handlers - HTTP хэндлеры REST API.
package handlers

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"fydblock/internal/api/middleware"
	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxRequestBodySize ограничивает размер тела запроса (1 MB)
const maxRequestBodySize = 1 << 20

// Хэндлеры зависят от интерфейсов сервисов: в тестах подставляются моки

// PortfolioAPI - операции портфеля
type PortfolioAPI interface {
	GetPortfolio(ctx context.Context, userID int, mode string) (*service.PortfolioView, error)
}

// DashboardAPI - сводка дашборда
type DashboardAPI interface {
	GetDashboard(ctx context.Context, userID int, mode, timeframe string) (*service.DashboardView, error)
}

// ExchangeAPI - управление подключениями бирж
type ExchangeAPI interface {
	Connect(ctx context.Context, userID int, req service.ConnectRequest) (*service.ConnectionView, error)
	Disconnect(ctx context.Context, userID int, exchangeID string) error
	Connections(userID int) ([]service.ConnectionView, error)
	SupportedExchanges() []string
}

// MarketAPI - публичные рыночные данные
type MarketAPI interface {
	MarketTickers(ctx context.Context, exchangeID string, sandbox bool, symbols []string) (map[string]exchange.Ticker, error)
}

// BotAPI - жизненный цикл ботов
type BotAPI interface {
	CreateBot(ctx context.Context, userID int, bot *models.Bot) (*models.Bot, error)
	GetBot(ctx context.Context, userID, botID int) (*service.BotView, error)
	ListBots(ctx context.Context, userID int) ([]*service.BotView, error)
	UpdateBotConfig(ctx context.Context, userID, botID int, cfg models.BotConfig) error
	StartBot(ctx context.Context, userID, botID int) error
	StopBot(ctx context.Context, userID, botID int) error
	DeleteBot(ctx context.Context, userID, botID int, liquidate bool) error
}

// Сервисы реализуют интерфейсы хэндлеров
var (
	_ PortfolioAPI = (*service.PortfolioService)(nil)
	_ DashboardAPI = (*service.DashboardService)(nil)
	_ ExchangeAPI  = (*service.ExchangeService)(nil)
	_ MarketAPI    = (*service.MarketService)(nil)
	_ BotAPI       = (*service.BotService)(nil)
)

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondWithJSON сериализует payload и отправляет его с указанным статусом
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// respondWithError отправляет ошибку в едином формате
func respondWithError(w http.ResponseWriter, status int, message, details string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// requireUserID достает пользователя из контекста аутентификации.
// Отсутствие означает запрос в обход auth middleware.
func requireUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := middleware.UserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required", "")
		return 0, false
	}
	return userID, true
}

// decodeBody декодирует JSON тело запроса с ограничением размера
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}
