package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/internal/repository"
)

// Стейблкоины оцениваются в 1 USD без запроса тикера
var stablecoins = map[string]bool{
	"USDT": true,
	"USDC": true,
	"DAI":  true,
	"BUSD": true,
}

// Сообщения для пользователя. Детали внутренних ошибок наружу не выходят.
const (
	msgNoExchange     = "no exchange connected"
	msgBadCredentials = "stored credentials could not be read, reconnect the exchange"
)

// sparklineLength - сколько последних снапшотов попадает в мини-график портфеля
const sparklineLength = 24

// AssetView - позиция портфеля в ответе API
type AssetView struct {
	Asset       string  `json:"asset"`
	Total       float64 `json:"total"`
	Free        float64 `json:"free"`
	Reserved    float64 `json:"reserved"`
	Price       float64 `json:"price"`
	Value       float64 `json:"value"`
	Change24Pct float64 `json:"change_24h_pct"`
}

// PortfolioView - портфель пользователя в одном режиме торговли
type PortfolioView struct {
	Mode         string      `json:"mode"`
	Exchange     string      `json:"exchange,omitempty"`
	TotalValue   float64     `json:"total_value"`
	Change24Pct  float64     `json:"change_24h_pct"`
	Assets       []AssetView `json:"assets"`
	History      []float64   `json:"history"`
	Error        string      `json:"error,omitempty"`
}

// PortfolioService собирает портфель: балансы биржи, резервы движка,
// оценка в USD и история стоимости
type PortfolioService struct {
	credentials CredentialStore
	snapshots   SnapshotStore
	clients     ClientProvider
	engine      EngineAPI
	key         []byte
	log         *zap.Logger
}

// NewPortfolioService создает сервис портфелей.
// key - ключ AES-256 для расшифровки биржевых ключей.
func NewPortfolioService(credentials CredentialStore, snapshots SnapshotStore, clients ClientProvider, engineAPI EngineAPI, key []byte, log *zap.Logger) *PortfolioService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PortfolioService{
		credentials: credentials,
		snapshots:   snapshots,
		clients:     clients,
		engine:      engineAPI,
		key:         key,
		log:         log,
	}
}

// emptyPortfolio возвращает нулевой портфель с пояснением.
// Отсутствие подключения - обычное состояние нового пользователя, не ошибка.
func emptyPortfolio(mode, reason string) *PortfolioView {
	return &PortfolioView{
		Mode:    mode,
		Assets:  []AssetView{},
		History: []float64{0, 0},
		Error:   reason,
	}
}

// GetPortfolio собирает портфель пользователя в заданном режиме.
//
// Шаги:
//  1. Актуальное подключение пользователя в режиме
//  2. Расшифровка ключей
//  3. Балансы с биржи через кэш клиентов
//  4. Резервы движка (best-effort: движок лежит - резервы пустые)
//  5. Сверка балансов с резервами
//  6. Оценка позиций в USD по тикерам
//  7. История стоимости для мини-графика
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID int, mode string) (*PortfolioView, error) {
	// 1. Подключение
	cred, err := s.credentials.GetCurrent(userID, mode)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return emptyPortfolio(mode, msgNoExchange), nil
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	// 2. Ключи
	apiKey, apiSecret, passphrase, err := decryptCredential(cred, s.key)
	if err != nil {
		// Ключ шифрования сменился или запись побита. Пользователь может
		// починить это сам переподключением - отдаём портфель с пояснением.
		s.log.Error("failed to decrypt stored credentials",
			zap.Int("user_id", userID),
			zap.String("exchange", cred.ExchangeName),
			zap.Error(err))
		return emptyPortfolio(mode, msgBadCredentials), nil
	}

	// 3. Балансы
	sandbox := mode == models.ModePaper
	client, err := s.clients.AuthClient(exchange.AuthParams{
		ExchangeID: cred.ExchangeID(),
		UserID:     userID,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
		Sandbox:    sandbox,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange client: %w", err)
	}

	balances, err := client.FetchBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance from %s: %w", cred.ExchangeID(), err)
	}

	// 4. Резервы движка. Недоступный движок не валит портфель:
	// без резервов free совпадает с биржевым.
	allocs, err := s.engine.Allocations(ctx, userID, mode)
	if err != nil {
		s.log.Warn("engine allocations unavailable, treating reserves as empty",
			zap.Int("user_id", userID),
			zap.String("mode", mode),
			zap.Error(err))
		allocs = models.AllocationMap{}
	}

	// 5. Сверка
	caps, _ := exchange.CapabilitiesOf(cred.ExchangeID())
	reconciled := ReconcileBalances(balances, allocs, PolicyFor(mode, caps.NativeSandbox))
	for asset, rec := range reconciled {
		if rec.Desynced {
			s.log.Warn("engine allocation out of sync with exchange balance",
				zap.Int("user_id", userID),
				zap.String("asset", asset),
				zap.Float64("exchange_total", rec.Total),
				zap.Float64("engine_total", allocs[asset].Total))
		}
	}

	// 6. Оценка в USD
	view := &PortfolioView{Mode: mode, Exchange: cred.ExchangeID()}
	view.Assets, view.TotalValue, view.Change24Pct = s.valuate(ctx, client, reconciled)

	// 7. История
	view.History = s.history(userID, mode, view.TotalValue)

	return view, nil
}

// valuate оценивает позиции в USD и считает изменение портфеля за 24 часа.
// Недоступные тикеры деградируют до нулевой оценки, а не до ошибки.
func (s *PortfolioService) valuate(ctx context.Context, client exchange.Client, reconciled map[string]ReconciledAsset) ([]AssetView, float64, float64) {
	symbols := make([]string, 0, len(reconciled))
	for asset := range reconciled {
		if !stablecoins[asset] {
			symbols = append(symbols, asset+"/USDT")
		}
	}

	tickers := map[string]exchange.Ticker{}
	if len(symbols) > 0 {
		fetched, err := client.FetchTickers(ctx, symbols)
		if err != nil {
			s.log.Warn("failed to fetch tickers, asset values degrade to zero",
				zap.String("exchange", client.ID()),
				zap.Error(err))
		} else {
			tickers = fetched
		}
	}

	assets := make([]AssetView, 0, len(reconciled))
	var totalValue, priorValue float64

	for asset, rec := range reconciled {
		var price, changePct float64
		if stablecoins[asset] {
			price = 1.0
		} else if ticker, ok := tickers[asset+"/USDT"]; ok {
			price = ticker.Last
			changePct = ticker.Percentage
		}

		value := rec.Total * price
		totalValue += value

		// Стоимость позиции сутки назад восстанавливается из изменения цены
		if price > 0 && changePct > -100 {
			priorValue += value / (1 + changePct/100)
		}

		assets = append(assets, AssetView{
			Asset:       asset,
			Total:       rec.Total,
			Free:        rec.Free,
			Reserved:    rec.Reserved,
			Price:       price,
			Value:       value,
			Change24Pct: changePct,
		})
	}

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Value != assets[j].Value {
			return assets[i].Value > assets[j].Value
		}
		return assets[i].Asset < assets[j].Asset
	})

	var portfolioChange float64
	if priorValue > 0 {
		portfolioChange = (totalValue - priorValue) / priorValue * 100
	}

	return assets, totalValue, portfolioChange
}

// history собирает мини-график стоимости: последние снапшоты от старых к
// новым плюс текущая точка. Минимум две точки - иначе графику нечего рисовать.
func (s *PortfolioService) history(userID int, mode string, currentValue float64) []float64 {
	snapshots, err := s.snapshots.LatestPortfolio(userID, mode, sparklineLength)
	if err != nil {
		s.log.Warn("failed to load portfolio history",
			zap.Int("user_id", userID),
			zap.String("mode", mode),
			zap.Error(err))
	}

	history := make([]float64, 0, len(snapshots)+1)
	for i := len(snapshots) - 1; i >= 0; i-- {
		history = append(history, snapshots[i].TotalValue)
	}
	if currentValue > 0 {
		history = append(history, currentValue)
	}

	for len(history) < 2 {
		if len(history) == 0 {
			history = append(history, 0)
		} else {
			history = append([]float64{history[0]}, history...)
		}
	}
	return history
}
