package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
)

const binanceTestnetURL = "https://testnet.binance.vision"

// Binance реализует Client поверх официального REST API через go-binance
type Binance struct {
	client  *binance.Client
	sandbox bool
}

var _ Client = (*Binance)(nil)

// newBinance создает клиента Binance. Sandbox - testnet с отдельным base URL,
// переключается на уровне экземпляра, а не глобального флага библиотеки.
func newBinance(opts Options) (Client, error) {
	client := binance.NewClient(opts.APIKey, opts.APISecret)
	client.HTTPClient = SharedHTTPClient()
	if opts.Sandbox {
		client.BaseURL = binanceTestnetURL
	}
	return &Binance{client: client, sandbox: opts.Sandbox}, nil
}

func (b *Binance) ID() string {
	return "binance"
}

// FetchBalance возвращает спотовые балансы аккаунта.
// Binance отдаёт free и locked, total считаем сами.
func (b *Binance) FetchBalance(ctx context.Context) (Balances, error) {
	start := time.Now()
	account, err := b.client.NewGetAccountService().Do(ctx)
	RequestDuration.WithLabelValues("binance", "balance").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrors.WithLabelValues("binance", "balance").Inc()
		return nil, &ExchangeError{Exchange: "binance", Message: "failed to fetch account balance", Original: err}
	}

	balances := make(Balances, len(account.Balances))
	for _, bal := range account.Balances {
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		balances[bal.Asset] = AssetBalance{
			Total:   free + locked,
			Free:    free,
			Used:    locked,
			HasFree: true,
			HasUsed: true,
		}
	}
	return balances, nil
}

// FetchTickers возвращает тикеры для набора пар.
// Binance не принимает список символов в статистике за 24ч, поэтому забираем
// весь срез одним запросом и фильтруем - это дешевле N одиночных запросов.
func (b *Binance) FetchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	start := time.Now()
	stats, err := b.client.NewListPriceChangeStatsService().Do(ctx)
	RequestDuration.WithLabelValues("binance", "tickers").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrors.WithLabelValues("binance", "tickers").Inc()
		return nil, &ExchangeError{Exchange: "binance", Message: "failed to fetch tickers", Original: err}
	}

	wanted := make(map[string]string, len(symbols)) // BTCUSDT -> BTC/USDT
	for _, s := range symbols {
		wanted[strings.ReplaceAll(s, "/", "")] = s
	}

	tickers := make(map[string]Ticker, len(symbols))
	for _, st := range stats {
		pair, ok := wanted[st.Symbol]
		if !ok {
			continue
		}
		last, _ := strconv.ParseFloat(st.LastPrice, 64)
		pct, _ := strconv.ParseFloat(st.PriceChangePercent, 64)
		tickers[pair] = Ticker{Symbol: pair, Last: last, Percentage: pct}
	}
	return tickers, nil
}

// Close - REST клиент без собственных ресурсов, соединения в общем пуле
func (b *Binance) Close() error {
	return nil
}
