package models

import (
	"strings"
	"time"
)

// Режимы торговли
const (
	ModeLive  = "live"
	ModePaper = "paper"
)

// PaperSuffix - суффикс exchange_name для paper-подключений (legacy-формат БД)
const PaperSuffix = "_paper"

// ExchangeCredential представляет подключение пользователя к бирже.
// API ключи хранятся зашифрованными (AES-256-GCM), в JSON не возвращаются.
type ExchangeCredential struct {
	ID             int       `json:"id" db:"exchange_id"`
	UserID         int       `json:"user_id" db:"user_id"`
	ExchangeName   string    `json:"exchange_name" db:"exchange_name"` // binance, okx_paper, ...
	APIKey         string    `json:"-" db:"api_key"`                   // зашифрован
	APISecret      string    `json:"-" db:"api_secret"`                // зашифрован
	Passphrase     string    `json:"-" db:"passphrase"`                // для OKX, зашифрован
	ConnectionType string    `json:"connection_type" db:"connection_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ExchangeID возвращает чистый идентификатор биржи без суффикса режима
func (c *ExchangeCredential) ExchangeID() string {
	return strings.ToLower(strings.TrimSuffix(c.ExchangeName, PaperSuffix))
}

// Mode возвращает режим торговли, закодированный в имени подключения
func (c *ExchangeCredential) Mode() string {
	if strings.HasSuffix(c.ExchangeName, PaperSuffix) {
		return ModePaper
	}
	return ModeLive
}

// CredentialName собирает exchange_name для хранения в БД
func CredentialName(exchangeID, mode string) string {
	name := strings.ToLower(exchangeID)
	if mode == ModePaper {
		return name + PaperSuffix
	}
	return name
}
