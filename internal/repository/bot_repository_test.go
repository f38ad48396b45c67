package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"fydblock/internal/models"
)

func botRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"bot_id", "user_id", "exchange_connection_id", "bot_name", "quote_currency",
		"bot_type", "status", "description", "config", "icon_url", "created_at",
		"exchange_name",
	})
}

func TestGetBotByIDParsesConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewBotRepository(db)
	config := []byte(`{"mode":"paper","pair":"BTC/USDT","total_profit":12.5,"strategy":{"grids":20}}`)

	mock.ExpectQuery(`FROM bots b`).
		WithArgs(7, 42).
		WillReturnRows(botRows(t).
			AddRow(7, 42, 3, "my grid", "USDT", "grid", "running", "", config, "", time.Now(), "binance_paper"))

	bot, err := repo.GetByID(42, 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if bot.Config.Mode != models.ModePaper {
		t.Errorf("Config.Mode = %q, want paper", bot.Config.Mode)
	}
	if bot.Config.Strategy.Grids != 20 {
		t.Errorf("Config.Strategy.Grids = %d, want 20", bot.Config.Strategy.Grids)
	}
	// Спейсинг не задан - Normalize подставляет arithmetic
	if bot.Config.Strategy.Spacing != "arithmetic" {
		t.Errorf("Config.Strategy.Spacing = %q, want arithmetic", bot.Config.Strategy.Spacing)
	}
	if !bot.IsRunning() {
		t.Error("expected bot to be running")
	}
}

func TestGetBotByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewBotRepository(db)

	mock.ExpectQuery(`FROM bots b`).
		WithArgs(7, 42).
		WillReturnRows(botRows(t))

	_, err = repo.GetByID(42, 7)
	if !errors.Is(err, ErrBotNotFound) {
		t.Errorf("expected ErrBotNotFound, got %v", err)
	}
}

func TestUpdateStatusForeignBot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewBotRepository(db)

	// Бот существует, но принадлежит другому пользователю - 0 строк затронуто
	mock.ExpectExec(`UPDATE bots SET status`).
		WithArgs(models.BotStatusPaused, 7, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(99, 7, models.BotStatusPaused)
	if !errors.Is(err, ErrBotNotFound) {
		t.Errorf("expected ErrBotNotFound, got %v", err)
	}
}

func TestDeleteBotRemovesSnapshots(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewBotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM bot_snapshots`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 25))
	mock.ExpectExec(`DELETE FROM bots`).
		WithArgs(7, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(42, 7); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
