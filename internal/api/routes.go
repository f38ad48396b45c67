// Package api - маршрутизация HTTP API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fydblock/internal/api/handlers"
	"fydblock/internal/api/middleware"
	"fydblock/internal/websocket"
)

// Dependencies содержит зависимости для HTTP хэндлеров
type Dependencies struct {
	Portfolio handlers.PortfolioAPI
	Dashboard handlers.DashboardAPI
	Exchanges handlers.ExchangeAPI
	Market    handlers.MarketAPI
	Bots      handlers.BotAPI
	Hub       *websocket.Hub
	Log       *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/  (за auth middleware, пользователь приходит из X-User-ID)
//
//	├── /portfolio - текущий портфель
//	├── /dashboard - сводка дашборда
//	├── /exchanges/
//	│   ├── GET / - список поддерживаемых бирж
//	│   ├── GET /connections - подключения пользователя
//	│   ├── POST /connections - подключить биржу
//	│   └── DELETE /connections/{exchange} - отключить биржу
//	├── /market/
//	│   └── GET /tickers - публичные тикеры биржи
//	└── /bots/
//	    ├── GET / - список ботов
//	    ├── POST / - создать бота
//	    ├── GET /{id} - получить бота
//	    ├── PATCH /{id} - обновить конфигурацию
//	    ├── DELETE /{id} - удалить бота
//	    ├── POST /{id}/start - запустить бота
//	    └── POST /{id}/stop - остановить бота
//
// /ws/stream - WebSocket для push-обновлений (тоже за auth)
// /health - проверка живости
// /metrics - Prometheus метрики
func SetupRoutes(deps *Dependencies) *mux.Router {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	router := mux.NewRouter()

	// Глобальные middleware: recovery снаружи, чтобы ловить паники
	// в остальных
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS)

	portfolioHandler := handlers.NewPortfolioHandler(deps.Portfolio, deps.Dashboard)
	exchangeHandler := handlers.NewExchangeHandler(deps.Exchanges)
	marketHandler := handlers.NewMarketHandler(deps.Market)
	botHandler := handlers.NewBotHandler(deps.Bots)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth)

	api.HandleFunc("/portfolio", portfolioHandler.GetPortfolio).Methods("GET")
	api.HandleFunc("/dashboard", portfolioHandler.GetDashboard).Methods("GET")

	api.HandleFunc("/exchanges", exchangeHandler.GetExchanges).Methods("GET")
	api.HandleFunc("/exchanges/connections", exchangeHandler.GetConnections).Methods("GET")
	api.HandleFunc("/exchanges/connections", exchangeHandler.Connect).Methods("POST")
	api.HandleFunc("/exchanges/connections/{exchange}", exchangeHandler.Disconnect).Methods("DELETE")

	api.HandleFunc("/market/tickers", marketHandler.GetTickers).Methods("GET")

	api.HandleFunc("/bots", botHandler.ListBots).Methods("GET")
	api.HandleFunc("/bots", botHandler.CreateBot).Methods("POST")
	api.HandleFunc("/bots/{id}", botHandler.GetBot).Methods("GET")
	api.HandleFunc("/bots/{id}", botHandler.UpdateBot).Methods("PATCH")
	api.HandleFunc("/bots/{id}", botHandler.DeleteBot).Methods("DELETE")
	api.HandleFunc("/bots/{id}/start", botHandler.StartBot).Methods("POST")
	api.HandleFunc("/bots/{id}/stop", botHandler.StopBot).Methods("POST")

	// WebSocket за тем же auth middleware, что и REST
	if deps.Hub != nil {
		router.Handle("/ws/stream", middleware.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := middleware.UserID(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			websocket.ServeWS(deps.Hub, userID, w, r)
		}))).Methods("GET")
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
