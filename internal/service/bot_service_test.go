package service

import (
	"context"
	"errors"
	"testing"

	"fydblock/internal/engine"
	"fydblock/internal/models"
	"fydblock/internal/repository"
)

func TestCreateBotBindsToCurrentCredential(t *testing.T) {
	key := testKey(t)
	cred := encryptedCredential(t, key, "binance_paper")
	cred.ID = 9

	creds := &mockCredentialStore{
		GetCurrentFn: func(userID int, mode string) (*models.ExchangeCredential, error) {
			if mode != models.ModePaper {
				t.Errorf("mode = %q, want paper", mode)
			}
			return cred, nil
		},
	}
	bots := &mockBotStore{
		CreateFn: func(bot *models.Bot) error {
			bot.ID = 5
			return nil
		},
	}

	svc := NewBotService(bots, creds, emptySnapshotStore(), &mockEngine{}, key, nil)

	bot, err := svc.CreateBot(context.Background(), 42, &models.Bot{
		Name:   "grid one",
		Config: models.BotConfig{Mode: models.ModePaper, Pair: "BTC/USDT"},
	})
	if err != nil {
		t.Fatalf("CreateBot() error = %v", err)
	}

	if bot.CredentialID != 9 {
		t.Errorf("CredentialID = %d, want 9", bot.CredentialID)
	}
	if bot.Status != models.BotStatusPaused {
		t.Errorf("Status = %q, want paused (bots never start on creation)", bot.Status)
	}
	if bot.Config.Strategy.Grids != 10 {
		t.Errorf("Grids = %d, want 10 (default applied)", bot.Config.Strategy.Grids)
	}
}

func TestCreateBotNoCredential(t *testing.T) {
	creds := &mockCredentialStore{
		GetCurrentFn: func(userID int, mode string) (*models.ExchangeCredential, error) {
			return nil, repository.ErrCredentialNotFound
		},
	}

	svc := NewBotService(&mockBotStore{}, creds, emptySnapshotStore(), &mockEngine{}, testKey(t), nil)

	_, err := svc.CreateBot(context.Background(), 42, &models.Bot{})
	if !errors.Is(err, ErrNoCredentialForMode) {
		t.Errorf("expected ErrNoCredentialForMode, got %v", err)
	}
}

func TestStartBotPassesDecryptedCredentials(t *testing.T) {
	key := testKey(t)
	cred := encryptedCredential(t, key, "binance")

	creds := &mockCredentialStore{
		GetByIDFn: func(id int) (*models.ExchangeCredential, error) { return cred, nil },
	}

	var status string
	bots := &mockBotStore{
		GetByIDFn: func(userID, botID int) (*models.Bot, error) {
			return &models.Bot{
				ID: 7, UserID: 42, CredentialID: 3,
				Status: models.BotStatusPaused,
				Config: models.BotConfig{Mode: models.ModeLive, Pair: "BTC/USDT"},
			}, nil
		},
		UpdateStatusFn: func(userID, botID int, newStatus string) error {
			status = newStatus
			return nil
		},
	}

	var started engine.StartBotRequest
	eng := &mockEngine{
		StartBotFn: func(ctx context.Context, req engine.StartBotRequest) error {
			started = req
			return nil
		},
	}

	notifier := &mockNotifier{}
	svc := NewBotService(bots, creds, emptySnapshotStore(), eng, key, nil)
	svc.AttachNotifier(notifier)

	if err := svc.StartBot(context.Background(), 42, 7); err != nil {
		t.Fatalf("StartBot() error = %v", err)
	}

	if len(notifier.botStatuses) != 1 || notifier.botStatuses[0] != models.BotStatusRunning {
		t.Errorf("bot statuses = %v, want [running]", notifier.botStatuses)
	}

	// Движок получает расшифрованные ключи, в БД они остаются шифротекстом
	if started.Credentials.APIKey != "api-key" {
		t.Errorf("engine got api key %q, want api-key", started.Credentials.APIKey)
	}
	if started.Exchange != "binance" {
		t.Errorf("Exchange = %q, want binance", started.Exchange)
	}
	if status != models.BotStatusRunning {
		t.Errorf("status = %q, want running", status)
	}
}

func TestStartBotAlreadyRunning(t *testing.T) {
	bots := &mockBotStore{
		GetByIDFn: func(userID, botID int) (*models.Bot, error) {
			return &models.Bot{ID: 7, Status: models.BotStatusRunning}, nil
		},
	}

	svc := NewBotService(bots, &mockCredentialStore{}, emptySnapshotStore(), &mockEngine{}, testKey(t), nil)

	if err := svc.StartBot(context.Background(), 42, 7); !errors.Is(err, ErrBotAlreadyRunning) {
		t.Errorf("expected ErrBotAlreadyRunning, got %v", err)
	}
}

func TestStartBotRollsBackOnStatusFailure(t *testing.T) {
	key := testKey(t)
	cred := encryptedCredential(t, key, "binance")

	creds := &mockCredentialStore{
		GetByIDFn: func(id int) (*models.ExchangeCredential, error) { return cred, nil },
	}
	bots := &mockBotStore{
		GetByIDFn: func(userID, botID int) (*models.Bot, error) {
			return &models.Bot{ID: 7, CredentialID: 3, Status: models.BotStatusPaused}, nil
		},
		UpdateStatusFn: func(userID, botID int, status string) error {
			return errors.New("connection lost")
		},
	}

	var stopCalled bool
	eng := &mockEngine{
		StartBotFn: func(ctx context.Context, req engine.StartBotRequest) error { return nil },
		StopBotFn: func(ctx context.Context, botID int) error {
			stopCalled = true
			return nil
		},
	}

	svc := NewBotService(bots, creds, emptySnapshotStore(), eng, key, nil)

	if err := svc.StartBot(context.Background(), 42, 7); err == nil {
		t.Fatal("expected error")
	}
	if !stopCalled {
		t.Error("expected engine rollback stop after status update failure")
	}
}

func TestDeleteStoppedBotSkipsEngine(t *testing.T) {
	bots := &mockBotStore{
		GetByIDFn: func(userID, botID int) (*models.Bot, error) {
			return &models.Bot{ID: 7, Status: models.BotStatusPaused}, nil
		},
		DeleteFn: func(userID, botID int) error { return nil },
	}
	eng := &mockEngine{
		DeleteBotFn: func(ctx context.Context, botID int, liquidate bool) error {
			t.Error("engine must not be called for a stopped bot without liquidation")
			return nil
		},
	}

	svc := NewBotService(bots, &mockCredentialStore{}, emptySnapshotStore(), eng, testKey(t), nil)

	if err := svc.DeleteBot(context.Background(), 42, 7, false); err != nil {
		t.Fatalf("DeleteBot() error = %v", err)
	}
}

func TestUpdateBotConfigKeepsMode(t *testing.T) {
	var saved models.BotConfig
	bots := &mockBotStore{
		GetByIDFn: func(userID, botID int) (*models.Bot, error) {
			return &models.Bot{
				ID: 7, Status: models.BotStatusPaused,
				Config: models.BotConfig{Mode: models.ModePaper},
			}, nil
		},
		UpdateConfigFn: func(userID, botID int, cfg models.BotConfig) error {
			saved = cfg
			return nil
		},
	}

	svc := NewBotService(bots, &mockCredentialStore{}, emptySnapshotStore(), &mockEngine{}, testKey(t), nil)

	err := svc.UpdateBotConfig(context.Background(), 42, 7, models.BotConfig{
		Mode: models.ModeLive, // попытка сменить режим игнорируется
		Pair: "ETH/USDT",
	})
	if err != nil {
		t.Fatalf("UpdateBotConfig() error = %v", err)
	}

	if saved.Mode != models.ModePaper {
		t.Errorf("Mode = %q, want paper (mode is fixed at creation)", saved.Mode)
	}
	if saved.Pair != "ETH/USDT" {
		t.Errorf("Pair = %q, want ETH/USDT", saved.Pair)
	}
}

func TestListBotsAttachesProfitHistory(t *testing.T) {
	bots := &mockBotStore{
		ListByUserFn: func(userID int) ([]*models.Bot, error) {
			return []*models.Bot{{ID: 7}}, nil
		},
	}
	snaps := emptySnapshotStore()
	snaps.BotProfitSparklineFn = func(botID int, limit int) ([]models.BotProfitSnapshot, error) {
		return []models.BotProfitSnapshot{
			{TotalProfit: 3.0}, // новейший
			{TotalProfit: 1.5},
		}, nil
	}

	svc := NewBotService(bots, &mockCredentialStore{}, snaps, &mockEngine{}, testKey(t), nil)

	views, err := svc.ListBots(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListBots() error = %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 bot, got %d", len(views))
	}

	// История от старых точек к новым
	want := []float64{1.5, 3.0}
	for i, v := range want {
		if views[0].ProfitHistory[i] != v {
			t.Errorf("ProfitHistory[%d] = %v, want %v", i, views[0].ProfitHistory[i], v)
		}
	}
}
