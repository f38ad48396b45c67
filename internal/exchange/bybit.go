package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hirokisan/bybit/v2"
)

const bybitTestnetURL = "https://api-testnet.bybit.com"

// Bybit реализует Client поверх API v5 через hirokisan/bybit
type Bybit struct {
	client  *bybit.Client
	sandbox bool
}

var _ Client = (*Bybit)(nil)

// newBybit создает клиента Bybit. Sandbox - testnet через отдельный base URL.
func newBybit(opts Options) (Client, error) {
	client := bybit.NewClient().WithAuth(opts.APIKey, opts.APISecret)
	if opts.Sandbox {
		client = client.WithBaseURL(bybitTestnetURL)
	}
	return &Bybit{client: client, sandbox: opts.Sandbox}, nil
}

func (b *Bybit) ID() string {
	return "bybit"
}

// FetchBalance возвращает балансы unified аккаунта.
// Bybit отдаёт walletBalance и locked, явного free в ответе нет.
func (b *Bybit) FetchBalance(ctx context.Context) (Balances, error) {
	start := time.Now()
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	RequestDuration.WithLabelValues("bybit", "balance").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrors.WithLabelValues("bybit", "balance").Inc()
		return nil, &ExchangeError{Exchange: "bybit", Message: "failed to fetch wallet balance", Original: err}
	}

	balances := make(Balances)
	for _, acc := range res.Result.List {
		for _, coin := range acc.Coin {
			total, _ := strconv.ParseFloat(coin.WalletBalance, 64)
			locked, _ := strconv.ParseFloat(coin.Locked, 64)
			if total == 0 {
				continue
			}
			balances[string(coin.Coin)] = AssetBalance{
				Total:   total,
				Used:    locked,
				HasUsed: true,
			}
		}
	}
	return balances, nil
}

// FetchTickers возвращает спотовые тикеры по одному на запрос:
// v5 API не принимает список символов в одном вызове
func (b *Bybit) FetchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	tickers := make(map[string]Ticker, len(symbols))

	for _, pair := range symbols {
		symbol := bybit.SymbolV5(strings.ReplaceAll(pair, "/", ""))

		start := time.Now()
		res, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &symbol,
		})
		RequestDuration.WithLabelValues("bybit", "tickers").Observe(time.Since(start).Seconds())
		if err != nil {
			RequestErrors.WithLabelValues("bybit", "tickers").Inc()
			return nil, &ExchangeError{Exchange: "bybit", Message: "failed to fetch ticker " + pair, Original: err}
		}

		if res.Result.Spot == nil || len(res.Result.Spot.List) == 0 {
			continue
		}
		item := res.Result.Spot.List[0]
		last, _ := strconv.ParseFloat(item.LastPrice, 64)
		pct, _ := strconv.ParseFloat(item.Price24HPcnt, 64)
		// price24hPcnt приходит долей (0.015), приводим к процентам
		tickers[pair] = Ticker{Symbol: pair, Last: last, Percentage: pct * 100}
	}
	return tickers, nil
}

// Close - REST клиент без собственных ресурсов
func (b *Bybit) Close() error {
	return nil
}
