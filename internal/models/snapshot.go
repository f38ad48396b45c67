package models

import "time"

// PortfolioSnapshot - точечное наблюдение общего equity пользователя в одном режиме.
// Записывается только при TotalValue > 0: нулевые/неудачные расчеты не сохраняются,
// чтобы не отравлять историю транзиентными сбоями бирж.
type PortfolioSnapshot struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	TotalValue float64   `json:"total_value" db:"total_value"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// BotProfitSnapshot - точечное наблюдение накопленной прибыли одного бота
type BotProfitSnapshot struct {
	ID          int       `json:"id" db:"id"`
	BotID       int       `json:"bot_id" db:"bot_id"`
	TotalProfit float64   `json:"total_profit" db:"total_profit"`
	RecordedAt  time.Time `json:"recorded_at" db:"recorded_at"`
}

// ProfitPoint - одна точка почасового ряда прибыли (сумма по всем ботам пользователя)
type ProfitPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ChartPoint - точка графика после даунсемплинга, с готовой подписью для UI
type ChartPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}
