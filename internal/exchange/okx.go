package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	okxBaseURL = "https://www.okx.com"

	// OKX не имеет отдельного testnet хоста: demo trading включается
	// заголовком на основном API
	okxSimulatedHeader = "x-simulated-trading"
)

// OKX реализует Client поверх REST API v5
type OKX struct {
	apiKey     string
	secretKey  string
	passphrase string
	sandbox    bool

	httpClient *http.Client
}

var _ Client = (*OKX)(nil)

// newOKX создает клиента OKX. Требует passphrase для приватных вызовов.
func newOKX(opts Options) (Client, error) {
	return &OKX{
		apiKey:     opts.APIKey,
		secretKey:  opts.APISecret,
		passphrase: opts.Passphrase,
		sandbox:    opts.Sandbox,
		httpClient: SharedHTTPClient(),
	}, nil
}

func (o *OKX) ID() string {
	return "okx"
}

// sign создает подпись запроса: base64(HMAC-SHA256(timestamp+method+path+body))
func (o *OKX) sign(timestamp, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(o.secretKey))
	h.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к OKX API.
// requestPath включает query string - она участвует в подписи.
func (o *OKX) doRequest(ctx context.Context, method, requestPath string, signed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, okxBaseURL+requestPath, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.Header.Set("OK-ACCESS-KEY", o.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", o.sign(timestamp, method, requestPath, ""))
		req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("OK-ACCESS-PASSPHRASE", o.passphrase)
	}

	if o.sandbox {
		req.Header.Set(okxSimulatedHeader, "1")
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Проверяем базовый ответ
	var baseResp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, &ExchangeError{Exchange: "okx", Message: "malformed response", Original: err}
	}

	if baseResp.Code != "0" {
		return nil, &ExchangeError{
			Exchange: "okx",
			Code:     baseResp.Code,
			Message:  baseResp.Msg,
		}
	}

	return body, nil
}

// FetchBalance возвращает балансы торгового аккаунта.
// OKX отдаёт и доступный (availBal), и замороженный (frozenBal) остаток.
func (o *OKX) FetchBalance(ctx context.Context) (Balances, error) {
	start := time.Now()
	body, err := o.doRequest(ctx, http.MethodGet, "/api/v5/account/balance", true)
	RequestDuration.WithLabelValues("okx", "balance").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrors.WithLabelValues("okx", "balance").Inc()
		return nil, err
	}

	var resp struct {
		Data []struct {
			Details []struct {
				Ccy       string `json:"ccy"`
				CashBal   string `json:"cashBal"`
				AvailBal  string `json:"availBal"`
				FrozenBal string `json:"frozenBal"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ExchangeError{Exchange: "okx", Message: "malformed balance response", Original: err}
	}

	balances := make(Balances)
	for _, acc := range resp.Data {
		for _, d := range acc.Details {
			total, _ := strconv.ParseFloat(d.CashBal, 64)
			free, _ := strconv.ParseFloat(d.AvailBal, 64)
			used, _ := strconv.ParseFloat(d.FrozenBal, 64)
			if total == 0 {
				continue
			}
			balances[d.Ccy] = AssetBalance{
				Total:   total,
				Free:    free,
				Used:    used,
				HasFree: true,
				HasUsed: true,
			}
		}
	}
	return balances, nil
}

// FetchTickers возвращает спотовые тикеры: весь срез одним запросом, фильтруем.
// Изменение за 24ч OKX не отдаёт готовым - считаем от open24h.
func (o *OKX) FetchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	start := time.Now()
	body, err := o.doRequest(ctx, http.MethodGet, "/api/v5/market/tickers?instType=SPOT", false)
	RequestDuration.WithLabelValues("okx", "tickers").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrors.WithLabelValues("okx", "tickers").Inc()
		return nil, err
	}

	var resp struct {
		Data []struct {
			InstID  string `json:"instId"`
			Last    string `json:"last"`
			Open24h string `json:"open24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ExchangeError{Exchange: "okx", Message: "malformed tickers response", Original: err}
	}

	wanted := make(map[string]string, len(symbols)) // BTC-USDT -> BTC/USDT
	for _, s := range symbols {
		wanted[strings.ReplaceAll(s, "/", "-")] = s
	}

	tickers := make(map[string]Ticker, len(symbols))
	for _, t := range resp.Data {
		pair, ok := wanted[t.InstID]
		if !ok {
			continue
		}
		last, _ := strconv.ParseFloat(t.Last, 64)
		open, _ := strconv.ParseFloat(t.Open24h, 64)
		var pct float64
		if open > 0 {
			pct = (last - open) / open * 100
		}
		tickers[pair] = Ticker{Symbol: pair, Last: last, Percentage: pct}
	}
	return tickers, nil
}

// Close - REST клиент без собственных ресурсов
func (o *OKX) Close() error {
	return nil
}
