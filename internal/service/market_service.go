package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fydblock/internal/exchange"
)

// MarketService отдаёт публичные рыночные данные. Ключи пользователя не
// нужны: клиент берётся из публичной секции кэша и общий для всех.
type MarketService struct {
	clients ClientProvider
	log     *zap.Logger
}

// NewMarketService создает сервис рыночных данных
func NewMarketService(clients ClientProvider, log *zap.Logger) *MarketService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MarketService{
		clients: clients,
		log:     log,
	}
}

// MarketTickers возвращает тикеры биржи по списку символов
func (s *MarketService) MarketTickers(ctx context.Context, exchangeID string, sandbox bool, symbols []string) (map[string]exchange.Ticker, error) {
	client, err := s.clients.PublicClient(exchangeID, sandbox)
	if err != nil {
		return nil, err
	}

	tickers, err := client.FetchTickers(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickers from %s: %w", exchangeID, err)
	}
	return tickers, nil
}
