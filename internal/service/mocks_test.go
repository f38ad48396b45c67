package service

import (
	"context"
	"time"

	"fydblock/internal/engine"
	"fydblock/internal/exchange"
	"fydblock/internal/models"
)

// Ручные моки зависимостей сервисного слоя.
// Nil-поле означает "вызов не ожидается": паника в тесте укажет на вызов,
// который тест не предусмотрел.

type mockCredentialStore struct {
	CreateFn            func(cred *models.ExchangeCredential) error
	GetByIDFn           func(id int) (*models.ExchangeCredential, error)
	GetCurrentFn        func(userID int, mode string) (*models.ExchangeCredential, error)
	GetAllCurrentFn     func() ([]*models.ExchangeCredential, error)
	ListByUserFn        func(userID int) ([]*models.ExchangeCredential, error)
	DeleteForExchangeFn func(userID int, exchangeID string) (int64, error)
}

func (m *mockCredentialStore) Create(cred *models.ExchangeCredential) error {
	return m.CreateFn(cred)
}
func (m *mockCredentialStore) GetByID(id int) (*models.ExchangeCredential, error) {
	return m.GetByIDFn(id)
}
func (m *mockCredentialStore) GetCurrent(userID int, mode string) (*models.ExchangeCredential, error) {
	return m.GetCurrentFn(userID, mode)
}
func (m *mockCredentialStore) GetAllCurrent() ([]*models.ExchangeCredential, error) {
	return m.GetAllCurrentFn()
}
func (m *mockCredentialStore) ListByUser(userID int) ([]*models.ExchangeCredential, error) {
	return m.ListByUserFn(userID)
}
func (m *mockCredentialStore) DeleteForExchange(userID int, exchangeID string) (int64, error) {
	return m.DeleteForExchangeFn(userID, exchangeID)
}

type mockSnapshotStore struct {
	InsertPortfolioFn    func(userID int, mode string, totalValue float64) error
	PortfolioSinceFn     func(userID int, mode string, since time.Time) ([]models.PortfolioSnapshot, error)
	OldestPortfolioFn    func(userID int, mode string) (*models.PortfolioSnapshot, error)
	LatestPortfolioFn    func(userID int, mode string, limit int) ([]models.PortfolioSnapshot, error)
	DeleteOlderThanFn    func(cutoff time.Time) (int64, error)
	InsertBotProfitFn    func(botID int, totalProfit float64) error
	BotProfitSparklineFn func(botID int, limit int) ([]models.BotProfitSnapshot, error)
	HourlyProfitSeriesFn func(userID int, mode string, since time.Time) ([]models.ProfitPoint, error)
}

func (m *mockSnapshotStore) InsertPortfolio(userID int, mode string, totalValue float64) error {
	return m.InsertPortfolioFn(userID, mode, totalValue)
}
func (m *mockSnapshotStore) PortfolioSince(userID int, mode string, since time.Time) ([]models.PortfolioSnapshot, error) {
	return m.PortfolioSinceFn(userID, mode, since)
}
func (m *mockSnapshotStore) OldestPortfolio(userID int, mode string) (*models.PortfolioSnapshot, error) {
	return m.OldestPortfolioFn(userID, mode)
}
func (m *mockSnapshotStore) LatestPortfolio(userID int, mode string, limit int) ([]models.PortfolioSnapshot, error) {
	return m.LatestPortfolioFn(userID, mode, limit)
}
func (m *mockSnapshotStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	return m.DeleteOlderThanFn(cutoff)
}
func (m *mockSnapshotStore) InsertBotProfit(botID int, totalProfit float64) error {
	return m.InsertBotProfitFn(botID, totalProfit)
}
func (m *mockSnapshotStore) BotProfitSparkline(botID int, limit int) ([]models.BotProfitSnapshot, error) {
	return m.BotProfitSparklineFn(botID, limit)
}
func (m *mockSnapshotStore) HourlyProfitSeries(userID int, mode string, since time.Time) ([]models.ProfitPoint, error) {
	return m.HourlyProfitSeriesFn(userID, mode, since)
}

type mockBotStore struct {
	CreateFn       func(bot *models.Bot) error
	GetByIDFn      func(userID, botID int) (*models.Bot, error)
	ListByUserFn   func(userID int) ([]*models.Bot, error)
	UpdateStatusFn func(userID, botID int, status string) error
	UpdateConfigFn func(userID, botID int, cfg models.BotConfig) error
	DeleteFn       func(userID, botID int) error
}

func (m *mockBotStore) Create(bot *models.Bot) error { return m.CreateFn(bot) }
func (m *mockBotStore) GetByID(userID, botID int) (*models.Bot, error) {
	return m.GetByIDFn(userID, botID)
}
func (m *mockBotStore) ListByUser(userID int) ([]*models.Bot, error) {
	return m.ListByUserFn(userID)
}
func (m *mockBotStore) UpdateStatus(userID, botID int, status string) error {
	return m.UpdateStatusFn(userID, botID, status)
}
func (m *mockBotStore) UpdateConfig(userID, botID int, cfg models.BotConfig) error {
	return m.UpdateConfigFn(userID, botID, cfg)
}
func (m *mockBotStore) Delete(userID, botID int) error { return m.DeleteFn(userID, botID) }

type mockEngine struct {
	AllocationsFn func(ctx context.Context, userID int, mode string) (models.AllocationMap, error)
	StartBotFn    func(ctx context.Context, req engine.StartBotRequest) error
	StopBotFn     func(ctx context.Context, botID int) error
	DeleteBotFn   func(ctx context.Context, botID int, liquidate bool) error
}

func (m *mockEngine) Allocations(ctx context.Context, userID int, mode string) (models.AllocationMap, error) {
	return m.AllocationsFn(ctx, userID, mode)
}
func (m *mockEngine) StartBot(ctx context.Context, req engine.StartBotRequest) error {
	return m.StartBotFn(ctx, req)
}
func (m *mockEngine) StopBot(ctx context.Context, botID int) error {
	return m.StopBotFn(ctx, botID)
}
func (m *mockEngine) DeleteBot(ctx context.Context, botID int, liquidate bool) error {
	return m.DeleteBotFn(ctx, botID, liquidate)
}

// stubClient - управляемый биржевой клиент
type stubClient struct {
	id       string
	balances exchange.Balances
	tickers  map[string]exchange.Ticker

	balanceErr error
	tickersErr error
}

func (c *stubClient) ID() string { return c.id }
func (c *stubClient) FetchBalance(ctx context.Context) (exchange.Balances, error) {
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return c.balances, nil
}
func (c *stubClient) FetchTickers(ctx context.Context, symbols []string) (map[string]exchange.Ticker, error) {
	if c.tickersErr != nil {
		return nil, c.tickersErr
	}
	return c.tickers, nil
}
func (c *stubClient) Close() error { return nil }

// mockClientProvider отдаёт заранее подготовленный stubClient
type mockClientProvider struct {
	client      *stubClient
	authErr     error
	invalidated []string
}

func (m *mockClientProvider) PublicClient(exchangeID string, sandbox bool) (exchange.Client, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.client, nil
}
func (m *mockClientProvider) AuthClient(p exchange.AuthParams) (exchange.Client, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.client, nil
}
func (m *mockClientProvider) Invalidate(exchangeID string, userID int) {
	m.invalidated = append(m.invalidated, exchangeID)
}

// mockNotifier запоминает push-сообщения
type mockNotifier struct {
	portfolioUpdates []float64
	botStatuses      []string
}

func (m *mockNotifier) SendPortfolioUpdate(userID int, mode string, totalValue float64) {
	m.portfolioUpdates = append(m.portfolioUpdates, totalValue)
}
func (m *mockNotifier) SendBotStatus(userID, botID int, status string) {
	m.botStatuses = append(m.botStatuses, status)
}
