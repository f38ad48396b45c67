package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Статусы бота
const (
	BotStatusActive  = "active"
	BotStatusPaused  = "paused"
	BotStatusError   = "error"
	BotStatusRunning = "running"
)

// Bot представляет грид-бота пользователя. Исполнение делегировано внешнему
// торговому движку, здесь хранится только конфигурация и статус.
type Bot struct {
	ID           int       `json:"bot_id" db:"bot_id"`
	UserID       int       `json:"user_id" db:"user_id"`
	CredentialID int       `json:"exchange_connection_id" db:"exchange_connection_id"`
	Name         string    `json:"bot_name" db:"bot_name"`
	QuoteAsset   string    `json:"quote_currency" db:"quote_currency"`
	Type         string    `json:"bot_type" db:"bot_type"`
	Status       string    `json:"status" db:"status"`
	Description  string    `json:"description,omitempty" db:"description"`
	Config       BotConfig `json:"config" db:"config"`
	IconURL      string    `json:"icon_url,omitempty" db:"icon_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// Заполняется JOIN'ом с user_exchanges, в таблице bots не хранится
	ExchangeName string `json:"exchange_name,omitempty" db:"-"`
}

// IsRunning сообщает, считается ли бот работающим с точки зрения UI
func (b *Bot) IsRunning() bool {
	return b.Status == BotStatusActive || b.Status == BotStatusRunning
}

// ExchangeID возвращает идентификатор биржи бота без суффикса режима
func (b *Bot) ExchangeID() string {
	return strings.ToLower(strings.TrimSuffix(b.ExchangeName, PaperSuffix))
}

// GridStrategy - параметры грид-стратегии
type GridStrategy struct {
	UpperPrice float64 `json:"upper_price"`
	LowerPrice float64 `json:"lower_price"`
	Grids      int     `json:"grids"`
	Spacing    string  `json:"spacing"` // arithmetic | geometric
	Investment float64 `json:"investment"`
}

// BotConfig - типизированная конфигурация бота. Хранится в колонке config (jsonb),
// валидируется и дополняется значениями по умолчанию на границе (Normalize),
// а не при каждом чтении.
type BotConfig struct {
	Mode        string       `json:"mode"`
	Pair        string       `json:"pair"`
	TotalProfit float64      `json:"total_profit"`
	TradeCount  int          `json:"trade_count"`
	Strategy    GridStrategy `json:"strategy"`
}

// Normalize приводит конфигурацию к каноничному виду: режим по умолчанию live,
// спейсинг arithmetic, минимум 1 грид
func (c *BotConfig) Normalize() {
	if c.Mode != ModePaper {
		c.Mode = ModeLive
	}
	if c.Strategy.Grids <= 0 {
		c.Strategy.Grids = 10
	}
	if strings.ToLower(c.Strategy.Spacing) == "geometric" {
		c.Strategy.Spacing = "geometric"
	} else {
		c.Strategy.Spacing = "arithmetic"
	}
}

// ParseBotConfig разбирает конфигурацию из сырого jsonb и нормализует её.
// Пустая строка трактуется как пустая конфигурация, а не ошибка.
func ParseBotConfig(raw []byte) (BotConfig, error) {
	var cfg BotConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return BotConfig{}, err
		}
	}
	cfg.Normalize()
	return cfg, nil
}

// Marshal сериализует конфигурацию для записи в jsonb колонку
func (c BotConfig) Marshal() ([]byte, error) {
	return json.Marshal(c)
}
