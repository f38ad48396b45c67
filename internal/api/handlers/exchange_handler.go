package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"fydblock/internal/exchange"
	"fydblock/internal/service"
)

// ExchangeHandler управляет подключениями пользователей к биржам
//
// Endpoints:
// - GET /api/v1/exchanges - список поддерживаемых бирж
// - GET /api/v1/exchanges/connections - подключения пользователя
// - POST /api/v1/exchanges/connections - подключить биржу
// - DELETE /api/v1/exchanges/connections/{exchange} - отключить биржу
type ExchangeHandler struct {
	exchanges ExchangeAPI
}

// NewExchangeHandler создает новый ExchangeHandler
func NewExchangeHandler(exchanges ExchangeAPI) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges}
}

// GetExchanges возвращает список бирж, доступных для подключения
// GET /api/v1/exchanges
func (h *ExchangeHandler) GetExchanges(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]string{
		"exchanges": h.exchanges.SupportedExchanges(),
	})
}

// GetConnections возвращает актуальные подключения пользователя
// GET /api/v1/exchanges/connections
func (h *ExchangeHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	views, err := h.exchanges.Connections(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load connections", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string][]service.ConnectionView{
		"connections": views,
	})
}

// Connect подключает биржу с API ключами
// POST /api/v1/exchanges/connections
//
// Тело запроса:
//
//	{
//	  "exchange": "binance",
//	  "mode": "live",
//	  "api_key": "...",
//	  "api_secret": "...",
//	  "passphrase": "..." // для OKX
//	}
//
// Ответы:
// - 201 Created: биржа подключена
// - 400 Bad Request: некорректные данные или неподдерживаемая биржа
// - 401 Unauthorized: биржа отвергла ключи
func (h *ExchangeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req service.ConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.ExchangeID = strings.ToLower(strings.TrimSpace(req.ExchangeID))
	if req.ExchangeID == "" {
		respondWithError(w, http.StatusBadRequest, "Exchange is required", "")
		return
	}
	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	if req.APISecret == "" {
		respondWithError(w, http.StatusBadRequest, "API secret is required", "")
		return
	}

	view, err := h.exchanges.Connect(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, exchange.ErrUnsupportedExchange):
			respondWithError(w, http.StatusBadRequest, "Unsupported exchange",
				"Supported exchanges: "+strings.Join(h.exchanges.SupportedExchanges(), ", "))
		case errors.Is(err, exchange.ErrSandboxUnsupported):
			respondWithError(w, http.StatusBadRequest, "Paper trading is not supported on this exchange", "")
		case errors.Is(err, service.ErrPassphraseRequired):
			respondWithError(w, http.StatusBadRequest, "Passphrase is required for this exchange", "")
		case errors.Is(err, service.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "Exchange rejected the credentials", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to connect exchange", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, view)
}

// Disconnect отключает биржу вместе с её ботами
// DELETE /api/v1/exchanges/connections/{exchange}
func (h *ExchangeHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	exchangeID := strings.ToLower(mux.Vars(r)["exchange"])

	if err := h.exchanges.Disconnect(r.Context(), userID, exchangeID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to disconnect exchange", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}
