package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fydblock/internal/api/middleware"
	"fydblock/internal/models"
	"fydblock/internal/service"
)

// Моки API хэндлеров: поля-функции, незаданные методы не должны вызываться

type mockPortfolioAPI struct {
	GetPortfolioFn func(ctx context.Context, userID int, mode string) (*service.PortfolioView, error)
}

func (m *mockPortfolioAPI) GetPortfolio(ctx context.Context, userID int, mode string) (*service.PortfolioView, error) {
	return m.GetPortfolioFn(ctx, userID, mode)
}

type mockDashboardAPI struct {
	GetDashboardFn func(ctx context.Context, userID int, mode, timeframe string) (*service.DashboardView, error)
}

func (m *mockDashboardAPI) GetDashboard(ctx context.Context, userID int, mode, timeframe string) (*service.DashboardView, error) {
	return m.GetDashboardFn(ctx, userID, mode, timeframe)
}

type mockExchangeAPI struct {
	ConnectFn            func(ctx context.Context, userID int, req service.ConnectRequest) (*service.ConnectionView, error)
	DisconnectFn         func(ctx context.Context, userID int, exchangeID string) error
	ConnectionsFn        func(userID int) ([]service.ConnectionView, error)
	SupportedExchangesFn func() []string
}

func (m *mockExchangeAPI) Connect(ctx context.Context, userID int, req service.ConnectRequest) (*service.ConnectionView, error) {
	return m.ConnectFn(ctx, userID, req)
}

func (m *mockExchangeAPI) Disconnect(ctx context.Context, userID int, exchangeID string) error {
	return m.DisconnectFn(ctx, userID, exchangeID)
}

func (m *mockExchangeAPI) Connections(userID int) ([]service.ConnectionView, error) {
	return m.ConnectionsFn(userID)
}

func (m *mockExchangeAPI) SupportedExchanges() []string {
	if m.SupportedExchangesFn != nil {
		return m.SupportedExchangesFn()
	}
	return []string{"binance", "bybit", "okx"}
}

type mockBotAPI struct {
	CreateBotFn       func(ctx context.Context, userID int, bot *models.Bot) (*models.Bot, error)
	GetBotFn          func(ctx context.Context, userID, botID int) (*service.BotView, error)
	ListBotsFn        func(ctx context.Context, userID int) ([]*service.BotView, error)
	UpdateBotConfigFn func(ctx context.Context, userID, botID int, cfg models.BotConfig) error
	StartBotFn        func(ctx context.Context, userID, botID int) error
	StopBotFn         func(ctx context.Context, userID, botID int) error
	DeleteBotFn       func(ctx context.Context, userID, botID int, liquidate bool) error
}

func (m *mockBotAPI) CreateBot(ctx context.Context, userID int, bot *models.Bot) (*models.Bot, error) {
	return m.CreateBotFn(ctx, userID, bot)
}

func (m *mockBotAPI) GetBot(ctx context.Context, userID, botID int) (*service.BotView, error) {
	return m.GetBotFn(ctx, userID, botID)
}

func (m *mockBotAPI) ListBots(ctx context.Context, userID int) ([]*service.BotView, error) {
	return m.ListBotsFn(ctx, userID)
}

func (m *mockBotAPI) UpdateBotConfig(ctx context.Context, userID, botID int, cfg models.BotConfig) error {
	return m.UpdateBotConfigFn(ctx, userID, botID, cfg)
}

func (m *mockBotAPI) StartBot(ctx context.Context, userID, botID int) error {
	return m.StartBotFn(ctx, userID, botID)
}

func (m *mockBotAPI) StopBot(ctx context.Context, userID, botID int) error {
	return m.StopBotFn(ctx, userID, botID)
}

func (m *mockBotAPI) DeleteBot(ctx context.Context, userID, botID int, liquidate bool) error {
	return m.DeleteBotFn(ctx, userID, botID, liquidate)
}

// authedRequest собирает запрос уже прошедший auth middleware
func authedRequest(method, target, body string, userID int) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return middleware.WithUserID(r, userID)
}

// decodeResponse разбирает JSON тело ответа
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}
