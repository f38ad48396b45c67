package repository

import (
	"database/sql"
	"fmt"
	"time"

	"fydblock/internal/models"
)

// SnapshotRepository - работа с историей стоимости портфелей и прибыли ботов.
// Снапшоты live и paper лежат в раздельных таблицах: история одного режима
// не должна пересчитываться при смене другого.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository создает новый экземпляр репозитория
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// portfolioTable возвращает имя таблицы снапшотов для режима.
// Имя таблицы нельзя передать плейсхолдером - режим проверяется по белому
// списку до подстановки в запрос.
func portfolioTable(mode string) (string, error) {
	switch mode {
	case models.ModeLive:
		return "portfolio_snapshots_live", nil
	case models.ModePaper:
		return "portfolio_snapshots_paper", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// InsertPortfolio записывает снапшот суммарной стоимости портфеля
func (r *SnapshotRepository) InsertPortfolio(userID int, mode string, totalValue float64) error {
	table, err := portfolioTable(mode)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + table + ` (user_id, total_value, recorded_at) VALUES ($1, $2, NOW())`
	_, err = r.db.Exec(query, userID, totalValue)
	return err
}

// PortfolioSince возвращает снапшоты пользователя начиная с указанного
// момента, от старых к новым
func (r *SnapshotRepository) PortfolioSince(userID int, mode string, since time.Time) ([]models.PortfolioSnapshot, error) {
	table, err := portfolioTable(mode)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, total_value, recorded_at
		FROM ` + table + `
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC`

	return r.queryPortfolio(query, userID, since)
}

// OldestPortfolio возвращает самый ранний снапшот пользователя.
// Fallback для расчёта PnL, когда истории за окно ещё нет.
func (r *SnapshotRepository) OldestPortfolio(userID int, mode string) (*models.PortfolioSnapshot, error) {
	table, err := portfolioTable(mode)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, total_value, recorded_at
		FROM ` + table + `
		WHERE user_id = $1
		ORDER BY recorded_at ASC
		LIMIT 1`

	snap := models.PortfolioSnapshot{}
	err = r.db.QueryRow(query, userID).Scan(&snap.ID, &snap.UserID, &snap.TotalValue, &snap.RecordedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// LatestPortfolio возвращает последние limit снапшотов от новых к старым.
// Используется для спарклайна на карточке портфеля.
func (r *SnapshotRepository) LatestPortfolio(userID int, mode string, limit int) ([]models.PortfolioSnapshot, error) {
	table, err := portfolioTable(mode)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, total_value, recorded_at
		FROM ` + table + `
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	return r.queryPortfolio(query, userID, limit)
}

func (r *SnapshotRepository) queryPortfolio(query string, args ...any) ([]models.PortfolioSnapshot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []models.PortfolioSnapshot
	for rows.Next() {
		var snap models.PortfolioSnapshot
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.TotalValue, &snap.RecordedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// DeleteOlderThan удаляет снапшоты обоих режимов старше cutoff.
// Возвращает количество удалённых строк.
func (r *SnapshotRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"portfolio_snapshots_live", "portfolio_snapshots_paper"} {
		res, err := r.db.Exec(`DELETE FROM `+table+` WHERE recorded_at < $1`, cutoff)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// InsertBotProfit записывает снапшот накопленной прибыли бота
func (r *SnapshotRepository) InsertBotProfit(botID int, totalProfit float64) error {
	_, err := r.db.Exec(
		`INSERT INTO bot_snapshots (bot_id, total_profit, recorded_at) VALUES ($1, $2, NOW())`,
		botID, totalProfit)
	return err
}

// BotProfitSparkline возвращает последние limit снапшотов прибыли бота
// от новых к старым
func (r *SnapshotRepository) BotProfitSparkline(botID int, limit int) ([]models.BotProfitSnapshot, error) {
	query := `
		SELECT id, bot_id, total_profit, recorded_at
		FROM bot_snapshots
		WHERE bot_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, botID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []models.BotProfitSnapshot
	for rows.Next() {
		var snap models.BotProfitSnapshot
		if err := rows.Scan(&snap.ID, &snap.BotID, &snap.TotalProfit, &snap.RecordedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// HourlyProfitSeries возвращает суммарную прибыль ботов пользователя в режиме,
// сгруппированную по часам, от старых к новым. Источник графика дашборда.
func (r *SnapshotRepository) HourlyProfitSeries(userID int, mode string, since time.Time) ([]models.ProfitPoint, error) {
	var condition string
	switch mode {
	case models.ModeLive:
		condition = `ue.exchange_name NOT LIKE '%\_paper'`
	case models.ModePaper:
		condition = `ue.exchange_name LIKE '%\_paper'`
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	query := `
		SELECT date_trunc('hour', bs.recorded_at) AS bucket, SUM(bs.total_profit) AS profit
		FROM bot_snapshots bs
		JOIN bots b ON b.bot_id = bs.bot_id
		JOIN user_exchanges ue ON ue.exchange_id = b.exchange_connection_id
		WHERE b.user_id = $1 AND ` + condition + ` AND bs.recorded_at >= $2
		GROUP BY bucket
		ORDER BY bucket ASC`

	rows, err := r.db.Query(query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.ProfitPoint
	for rows.Next() {
		var p models.ProfitPoint
		if err := rows.Scan(&p.Time, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
