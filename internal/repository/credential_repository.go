// Package repository - доступ к PostgreSQL.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"fydblock/internal/models"
)

// Ошибки репозитория подключений
var (
	ErrCredentialNotFound = errors.New("exchange credential not found")
	ErrInvalidMode        = errors.New("invalid trading mode")
)

const credentialColumns = "exchange_id, user_id, exchange_name, api_key, api_secret, COALESCE(passphrase, ''), connection_type, created_at"

// CredentialRepository - работа с таблицей user_exchanges.
// Режим торговли закодирован в exchange_name суффиксом "_paper" (legacy формат,
// менять схему нельзя - её читает и торговый движок).
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository создает новый экземпляр репозитория
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func scanCredential(row interface{ Scan(...any) error }) (*models.ExchangeCredential, error) {
	cred := &models.ExchangeCredential{}
	err := row.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.ExchangeName,
		&cred.APIKey,
		&cred.APISecret,
		&cred.Passphrase,
		&cred.ConnectionType,
		&cred.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Create сохраняет новое подключение. Ключи уже зашифрованы вызывающим кодом.
func (r *CredentialRepository) Create(cred *models.ExchangeCredential) error {
	query := `
		INSERT INTO user_exchanges (user_id, exchange_name, api_key, api_secret, passphrase, connection_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING exchange_id, created_at`

	return r.db.QueryRow(
		query,
		cred.UserID,
		cred.ExchangeName,
		cred.APIKey,
		cred.APISecret,
		cred.Passphrase,
		cred.ConnectionType,
	).Scan(&cred.ID, &cred.CreatedAt)
}

// GetByID возвращает подключение по ID
func (r *CredentialRepository) GetByID(id int) (*models.ExchangeCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM user_exchanges
		WHERE exchange_id = $1`

	cred, err := scanCredential(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return cred, nil
}

// GetCurrent возвращает актуальное (новейшее) подключение пользователя в
// заданном режиме. Переподключение биржи добавляет строку, а не обновляет
// старую - поэтому везде берётся самая свежая запись.
func (r *CredentialRepository) GetCurrent(userID int, mode string) (*models.ExchangeCredential, error) {
	var condition string
	switch mode {
	case models.ModeLive:
		condition = `exchange_name NOT LIKE '%\_paper'`
	case models.ModePaper:
		condition = `exchange_name LIKE '%\_paper'`
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	query := `
		SELECT ` + credentialColumns + `
		FROM user_exchanges
		WHERE user_id = $1 AND ` + condition + `
		ORDER BY created_at DESC
		LIMIT 1`

	cred, err := scanCredential(r.db.QueryRow(query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return cred, nil
}

// GetAllCurrent возвращает актуальные подключения всех пользователей:
// по одной новейшей записи на каждую пару (пользователь, exchange_name).
// Используется фоновым снятием снапшотов.
func (r *CredentialRepository) GetAllCurrent() ([]*models.ExchangeCredential, error) {
	query := `
		SELECT DISTINCT ON (user_id, exchange_name) ` + credentialColumns + `
		FROM user_exchanges
		ORDER BY user_id, exchange_name, created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*models.ExchangeCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// ListByUser возвращает актуальные подключения пользователя: по одной
// новейшей записи на exchange_name
func (r *CredentialRepository) ListByUser(userID int) ([]*models.ExchangeCredential, error) {
	query := `
		SELECT DISTINCT ON (exchange_name) ` + credentialColumns + `
		FROM user_exchanges
		WHERE user_id = $1
		ORDER BY exchange_name, created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*models.ExchangeCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// DeleteForExchange удаляет подключения пользователя к бирже в обоих режимах
// вместе с привязанными ботами. Атомарно: частично отключённая биржа хуже
// подключённой.
func (r *CredentialRepository) DeleteForExchange(userID int, exchangeID string) (int64, error) {
	liveName := models.CredentialName(exchangeID, models.ModeLive)
	paperName := models.CredentialName(exchangeID, models.ModePaper)

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM bots
		WHERE user_id = $1 AND exchange_connection_id IN (
			SELECT exchange_id FROM user_exchanges
			WHERE user_id = $1 AND exchange_name IN ($2, $3)
		)`, userID, liveName, paperName)
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
		DELETE FROM user_exchanges
		WHERE user_id = $1 AND exchange_name IN ($2, $3)`,
		userID, liveName, paperName)
	if err != nil {
		return 0, err
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}
