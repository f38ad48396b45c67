package service

import (
	"context"
	"time"

	"fydblock/internal/engine"
	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/internal/repository"
	"fydblock/internal/websocket"
)

// Интерфейсы зависимостей сервисного слоя. Реализации живут в repository,
// exchange и engine; здесь объявлено только то, что сервисам реально нужно.

// CredentialStore - хранилище подключений к биржам
type CredentialStore interface {
	Create(cred *models.ExchangeCredential) error
	GetByID(id int) (*models.ExchangeCredential, error)
	GetCurrent(userID int, mode string) (*models.ExchangeCredential, error)
	GetAllCurrent() ([]*models.ExchangeCredential, error)
	ListByUser(userID int) ([]*models.ExchangeCredential, error)
	DeleteForExchange(userID int, exchangeID string) (int64, error)
}

// SnapshotStore - хранилище истории портфелей и прибыли ботов
type SnapshotStore interface {
	InsertPortfolio(userID int, mode string, totalValue float64) error
	PortfolioSince(userID int, mode string, since time.Time) ([]models.PortfolioSnapshot, error)
	OldestPortfolio(userID int, mode string) (*models.PortfolioSnapshot, error)
	LatestPortfolio(userID int, mode string, limit int) ([]models.PortfolioSnapshot, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
	InsertBotProfit(botID int, totalProfit float64) error
	BotProfitSparkline(botID int, limit int) ([]models.BotProfitSnapshot, error)
	HourlyProfitSeries(userID int, mode string, since time.Time) ([]models.ProfitPoint, error)
}

// BotStore - хранилище ботов
type BotStore interface {
	Create(bot *models.Bot) error
	GetByID(userID, botID int) (*models.Bot, error)
	ListByUser(userID int) ([]*models.Bot, error)
	UpdateStatus(userID, botID int, status string) error
	UpdateConfig(userID, botID int, cfg models.BotConfig) error
	Delete(userID, botID int) error
}

// ClientProvider - кэш биржевых клиентов
type ClientProvider interface {
	PublicClient(exchangeID string, sandbox bool) (exchange.Client, error)
	AuthClient(p exchange.AuthParams) (exchange.Client, error)
	Invalidate(exchangeID string, userID int)
}

// Notifier - push-канал к фронтенду. Необязательный: сервисы терпят nil
type Notifier interface {
	SendPortfolioUpdate(userID int, mode string, totalValue float64)
	SendBotStatus(userID, botID int, status string)
}

// EngineAPI - торговый движок
type EngineAPI interface {
	Allocations(ctx context.Context, userID int, mode string) (models.AllocationMap, error)
	StartBot(ctx context.Context, req engine.StartBotRequest) error
	StopBot(ctx context.Context, botID int) error
	DeleteBot(ctx context.Context, botID int, liquidate bool) error
}

// Проверки соответствия интерфейсов на этапе компиляции
var (
	_ CredentialStore = (*repository.CredentialRepository)(nil)
	_ SnapshotStore   = (*repository.SnapshotRepository)(nil)
	_ BotStore        = (*repository.BotRepository)(nil)
	_ ClientProvider  = (*exchange.ClientCache)(nil)
	_ EngineAPI       = (*engine.Client)(nil)
	_ Notifier        = (*websocket.Hub)(nil)
)
