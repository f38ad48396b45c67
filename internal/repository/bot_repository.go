package repository

import (
	"database/sql"
	"errors"

	"fydblock/internal/models"
)

// Ошибки репозитория ботов
var (
	ErrBotNotFound = errors.New("bot not found")
)

const botColumns = `b.bot_id, b.user_id, b.exchange_connection_id, b.bot_name, b.quote_currency,
		b.bot_type, b.status, COALESCE(b.description, ''), b.config, COALESCE(b.icon_url, ''), b.created_at,
		ue.exchange_name`

// BotRepository - работа с таблицей bots
type BotRepository struct {
	db *sql.DB
}

// NewBotRepository создает новый экземпляр репозитория
func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

func scanBot(row interface{ Scan(...any) error }) (*models.Bot, error) {
	bot := &models.Bot{}
	var rawConfig []byte

	err := row.Scan(
		&bot.ID,
		&bot.UserID,
		&bot.CredentialID,
		&bot.Name,
		&bot.QuoteAsset,
		&bot.Type,
		&bot.Status,
		&bot.Description,
		&rawConfig,
		&bot.IconURL,
		&bot.CreatedAt,
		&bot.ExchangeName,
	)
	if err != nil {
		return nil, err
	}

	bot.Config, err = models.ParseBotConfig(rawConfig)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// Create сохраняет нового бота
func (r *BotRepository) Create(bot *models.Bot) error {
	rawConfig, err := bot.Config.Marshal()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bots (user_id, exchange_connection_id, bot_name, quote_currency, bot_type, status, description, config, icon_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING bot_id, created_at`

	return r.db.QueryRow(
		query,
		bot.UserID,
		bot.CredentialID,
		bot.Name,
		bot.QuoteAsset,
		bot.Type,
		bot.Status,
		bot.Description,
		rawConfig,
		bot.IconURL,
	).Scan(&bot.ID, &bot.CreatedAt)
}

// GetByID возвращает бота пользователя. Фильтр по user_id обязателен:
// идентификаторы ботов сквозные, чужой бот не должен быть виден.
func (r *BotRepository) GetByID(userID, botID int) (*models.Bot, error) {
	query := `
		SELECT ` + botColumns + `
		FROM bots b
		JOIN user_exchanges ue ON ue.exchange_id = b.exchange_connection_id
		WHERE b.bot_id = $1 AND b.user_id = $2`

	bot, err := scanBot(r.db.QueryRow(query, botID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return bot, nil
}

// ListByUser возвращает всех ботов пользователя, новые первыми
func (r *BotRepository) ListByUser(userID int) ([]*models.Bot, error) {
	query := `
		SELECT ` + botColumns + `
		FROM bots b
		JOIN user_exchanges ue ON ue.exchange_id = b.exchange_connection_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}

// UpdateStatus меняет статус бота
func (r *BotRepository) UpdateStatus(userID, botID int, status string) error {
	res, err := r.db.Exec(
		`UPDATE bots SET status = $1 WHERE bot_id = $2 AND user_id = $3`,
		status, botID, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBotNotFound
	}
	return nil
}

// UpdateConfig перезаписывает конфигурацию бота
func (r *BotRepository) UpdateConfig(userID, botID int, cfg models.BotConfig) error {
	rawConfig, err := cfg.Marshal()
	if err != nil {
		return err
	}

	res, err := r.db.Exec(
		`UPDATE bots SET config = $1 WHERE bot_id = $2 AND user_id = $3`,
		rawConfig, botID, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBotNotFound
	}
	return nil
}

// Delete удаляет бота вместе с историей его прибыли
func (r *BotRepository) Delete(userID, botID int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM bot_snapshots WHERE bot_id = $1`, botID); err != nil {
		return err
	}

	res, err := tx.Exec(`DELETE FROM bots WHERE bot_id = $1 AND user_id = $2`, botID, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBotNotFound
	}

	return tx.Commit()
}
