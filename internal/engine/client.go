// Package engine - HTTP клиент внешнего торгового движка.
// Движок исполняет стратегии ботов и ведёт учёт резервов под ордерами.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"fydblock/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки клиента движка
var (
	// ErrEngineUnavailable - движок недоступен или ответил не-2xx.
	// Для аллокаций вызывающий код деградирует до пустой карты.
	ErrEngineUnavailable = errors.New("trading engine unavailable")
)

// Client - клиент REST API торгового движка
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient создает клиента движка.
// timeout ограничивает каждый вызов: движок в горячем пути дашборда,
// зависший запрос не должен тянуть за собой весь ответ пользователю.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// BotCredentials - расшифрованные ключи, передаются движку при запуске бота
type BotCredentials struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// StartBotRequest - параметры запуска бота в движке
type StartBotRequest struct {
	BotID       int              `json:"bot_id"`
	UserID      int              `json:"user_id"`
	Exchange    string           `json:"exchange"`
	Mode        string           `json:"mode"`
	Pair        string           `json:"pair"`
	Config      models.BotConfig `json:"config"`
	Credentials BotCredentials   `json:"credentials"`
}

// Allocations возвращает резервы движка по активам пользователя в заданном
// режиме: сколько каждый актив занят ботами (total) и сколько из этого
// не находится в открытых ордерах (idle).
func (c *Client) Allocations(ctx context.Context, userID int, mode string) (models.AllocationMap, error) {
	query := url.Values{}
	query.Set("user_id", strconv.Itoa(userID))
	query.Set("mode", mode)

	body, err := c.doRequest(ctx, http.MethodGet, "/allocations?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Allocations models.AllocationMap `json:"allocations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode allocations: %w", err)
	}
	if resp.Allocations == nil {
		resp.Allocations = models.AllocationMap{}
	}
	return resp.Allocations, nil
}

// StartBot запускает бота в движке, передавая расшифрованные ключи
func (c *Client) StartBot(ctx context.Context, req StartBotRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode start request: %w", err)
	}

	_, err = c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/bots/%d/start", req.BotID), payload)
	return err
}

// StopBot останавливает бота в движке. Открытые позиции не трогаются.
func (c *Client) StopBot(ctx context.Context, botID int) error {
	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/bots/%d/stop", botID), nil)
	return err
}

// DeleteBot удаляет бота из движка.
// liquidate - продать базовый актив бота по рынку перед удалением.
func (c *Client) DeleteBot(ctx context.Context, botID int, liquidate bool) error {
	query := url.Values{}
	query.Set("liquidate", strconv.FormatBool(liquidate))

	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/bots/%d?%s", botID, query.Encode()), nil)
	return err
}

// doRequest выполняет вызов движка и возвращает тело ответа
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("trading engine request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrEngineUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Пытаемся вытащить сообщение об ошибке движка
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrEngineUnavailable, errResp.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrEngineUnavailable, resp.StatusCode)
	}

	return body, nil
}
