// Package exchange предоставляет унифицированный интерфейс для работы с биржами
// и кэш клиентских подключений.
package exchange

import (
	"context"
	"errors"
)

// Ошибки пакета
var (
	// ErrUnsupportedExchange - неизвестный идентификатор биржи.
	// Фатальна для конкретного запроса, не ретраится.
	ErrUnsupportedExchange = errors.New("exchange is not supported")

	// ErrSandboxUnsupported - запрошен paper режим, но у биржи нет ни нативного
	// sandbox, ни документированного ручного обхода
	ErrSandboxUnsupported = errors.New("exchange does not support sandbox mode")
)

// Client определяет минимальный интерфейс биржевого клиента, нужный
// портфельному ядру. Реализации могут быть аутентифицированными или публичными
// (пустые ключи); публичный клиент вернёт ошибку на приватных вызовах.
type Client interface {
	// ID возвращает идентификатор биржи (binance, okx, bybit)
	ID() string

	// FetchBalance возвращает баланс по всем активам аккаунта
	FetchBalance(ctx context.Context) (Balances, error)

	// FetchTickers возвращает тикеры для набора пар одной пачкой.
	// symbols - пары вида "BTC/USDT".
	FetchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error)

	// Close освобождает ресурсы клиента. Безопасен для повторного вызова.
	Close() error
}

// AssetBalance - баланс одного актива, как его сообщает биржа.
// Не все биржи отдают разбивку free/used: флаги фиксируют, какие поля
// реально присутствовали в ответе.
type AssetBalance struct {
	Total   float64
	Free    float64
	Used    float64
	HasFree bool
	HasUsed bool
}

// Balances - балансы по активам, ключ - символ актива (BTC, USDT...)
type Balances map[string]AssetBalance

// Ticker - последняя цена и изменение за 24 часа
type Ticker struct {
	Symbol     string  `json:"symbol"`     // пара вида "BTC/USDT"
	Last       float64 `json:"last"`       // цена последней сделки
	Percentage float64 `json:"percentage"` // изменение за 24ч, %
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
